package chain

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tewo-market/gateway/internal/models"
)

// DecodeRevert extracts a reason from an RPC error carrying revert data. The
// contract's custom errors are mapped to ErrInvalidID and ErrInvalidAmount.
func DecodeRevert(contractABI abi.ABI, err error) (string, error) {
	data := revertData(err)
	if len(data) < 4 {
		return "call failed", nil
	}

	for name, e := range contractABI.Errors {
		if !bytes.Equal(e.ID[:4], data[:4]) {
			continue
		}
		switch name {
		case ErrorInvalidID:
			return name, models.ErrInvalidID
		case ErrorInvalidAmount:
			return name, models.ErrInvalidAmount
		default:
			return name, nil
		}
	}

	if reason, uerr := abi.UnpackRevert(data); uerr == nil {
		return reason, nil
	}
	return "execution reverted", nil
}

func revertData(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		b, derr := hexutil.Decode(v)
		if derr != nil {
			return nil
		}
		return b
	case []byte:
		return v
	}
	return nil
}
