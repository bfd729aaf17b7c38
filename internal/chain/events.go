package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractEvent is a decoded marketplace log.
type ContractEvent struct {
	Name        string         `json:"name"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      string         `json:"tx_hash"`
	LogIndex    uint           `json:"log_index"`
	Fields      map[string]any `json:"fields"`
}

// DecodeEvent maps a raw log onto one of the contract's events. Indexed
// arguments are read from topics, the rest from data.
func DecodeEvent(contractABI abi.ABI, log types.Log) (*ContractEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log without topics")
	}
	ev, err := contractABI.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("unknown event %s: %w", log.Topics[0].Hex(), err)
	}

	fields := make(map[string]any)
	if len(log.Data) > 0 {
		if err := ev.Inputs.UnpackIntoMap(fields, log.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack %s: %w", ev.Name, err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to parse %s topics: %w", ev.Name, err)
		}
	}

	for k, v := range fields {
		fields[k] = normalizeField(v)
	}

	return &ContractEvent{
		Name:        ev.Name,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    log.Index,
		Fields:      fields,
	}, nil
}

// EventTopics returns the topic0 hashes of the contract's events.
func EventTopics(contractABI abi.ABI) []common.Hash {
	topics := make([]common.Hash, 0, len(contractABI.Events))
	for _, ev := range contractABI.Events {
		topics = append(topics, ev.ID)
	}
	return topics
}

func normalizeField(v any) any {
	switch t := v.(type) {
	case common.Address:
		return t.Hex()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}
