package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/redis/go-redis/v9"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/events"
	"go.uber.org/zap"
)

const (
	redisCursorBlock = "event-indexer:cursor:block"
	blockBatchSize   = 2000
)

// logSource is the node API the indexer reads. *ethclient.Client satisfies it.
type logSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// eventStore is satisfied by *repositories.EventRepo.
type eventStore interface {
	Insert(ctx context.Context, ev *chain.ContractEvent) (bool, error)
}

type indexer struct {
	src       logSource
	store     eventStore
	publisher events.Publisher
	rdb       *redis.Client
	abi       abi.ABI
	contract  common.Address
	topics    []common.Hash
	log       *zap.Logger
}

func newIndexer(
	src logSource,
	store eventStore,
	publisher events.Publisher,
	rdb *redis.Client,
	contractABI abi.ABI,
	contract common.Address,
	log *zap.Logger,
) *indexer {
	return &indexer{
		src:       src,
		store:     store,
		publisher: publisher,
		rdb:       rdb,
		abi:       contractABI,
		contract:  contract,
		topics:    chain.EventTopics(contractABI),
		log:       log,
	}
}

// initCursor sets the cursor on first run. Without a start block only events
// after startup are indexed.
func (ix *indexer) initCursor(ctx context.Context, startBlock uint64) error {
	existing, err := ix.rdb.Get(ctx, redisCursorBlock).Result()
	if err == nil && existing != "" {
		ix.log.Info("resuming from saved cursor", zap.String("block", existing))
		return nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read cursor: %w", err)
	}

	if startBlock > 0 {
		ix.saveCursor(ctx, startBlock-1)
		ix.log.Info("cursor initialized from start block", zap.Uint64("block", startBlock))
		return nil
	}

	head, err := ix.src.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get head block: %w", err)
	}
	ix.saveCursor(ctx, head)
	ix.log.Info("cursor initialized at head (skipping historical events)", zap.Uint64("block", head))
	return nil
}

func (ix *indexer) loadCursor(ctx context.Context) uint64 {
	val, err := ix.rdb.Get(ctx, redisCursorBlock).Result()
	if err != nil || val == "" {
		return 0
	}
	block, _ := strconv.ParseUint(val, 10, 64)
	return block
}

func (ix *indexer) saveCursor(ctx context.Context, block uint64) {
	ix.rdb.Set(ctx, redisCursorBlock, strconv.FormatUint(block, 10), 0)
}

// pollAndProcess indexes one batch of blocks after the cursor and advances
// it. Logs that fail to decode are skipped, storage failures abort the batch
// so it is retried on the next tick.
func (ix *indexer) pollAndProcess(ctx context.Context) error {
	cursor := ix.loadCursor(ctx)

	head, err := ix.src.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get head block: %w", err)
	}
	if head <= cursor {
		return nil
	}

	from, to := cursor+1, head
	if to-from >= blockBatchSize {
		to = from + blockBatchSize - 1
	}

	logs, err := ix.src.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{ix.contract},
		Topics:    [][]common.Hash{ix.topics},
	})
	if err != nil {
		return fmt.Errorf("filter logs %d-%d: %w", from, to, err)
	}

	for _, l := range logs {
		if l.Removed {
			continue
		}
		if err := ix.processLog(ctx, l); err != nil {
			return err
		}
	}

	if len(logs) > 0 {
		ix.log.Info("indexed blocks", zap.Uint64("from", from), zap.Uint64("to", to), zap.Int("logs", len(logs)))
	}
	ix.saveCursor(ctx, to)
	return nil
}

func (ix *indexer) processLog(ctx context.Context, l types.Log) error {
	ev, err := chain.DecodeEvent(ix.abi, l)
	if err != nil {
		ix.log.Warn("skipping undecodable log",
			zap.String("tx_hash", l.TxHash.Hex()),
			zap.Uint("log_index", l.Index),
			zap.Error(err),
		)
		return nil
	}

	inserted, err := ix.store.Insert(ctx, ev)
	if err != nil {
		return fmt.Errorf("store %s at %s: %w", ev.Name, ev.TxHash, err)
	}
	if !inserted {
		return nil
	}

	if err := ix.publisher.Publish(ctx, events.StreamContract, events.Event{
		Type: events.EventContract,
		Payload: map[string]any{
			"name":         ev.Name,
			"block_number": ev.BlockNumber,
			"tx_hash":      ev.TxHash,
			"log_index":    ev.LogIndex,
			"fields":       ev.Fields,
		},
	}); err != nil {
		ix.log.Warn("failed to publish contract event", zap.String("name", ev.Name), zap.Error(err))
	}
	return nil
}
