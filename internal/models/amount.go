package models

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// BaseUnits is an on-chain amount in the asset's smallest denomination
// (18 decimal places). It is the only amount type that may be attached to a
// transaction.
type BaseUnits struct {
	v *big.Int
}

// DisplayAmount is a fiat value for presentation only. Nothing converts it
// back into BaseUnits.
type DisplayAmount float64

func NewBaseUnits(v *big.Int) BaseUnits {
	if v == nil {
		return BaseUnits{}
	}
	return BaseUnits{v: new(big.Int).Set(v)}
}

func BaseUnitsFromUint64(v uint64) BaseUnits {
	return BaseUnits{v: new(big.Int).SetUint64(v)}
}

// ParseBaseUnits parses a decimal integer string such as "500000000000000000".
func ParseBaseUnits(s string) (BaseUnits, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return BaseUnits{}, fmt.Errorf("invalid base unit amount %q", s)
	}
	return BaseUnits{v: v}, nil
}

// Int returns a copy of the underlying integer. A zero value yields 0.
func (b BaseUnits) Int() *big.Int {
	if b.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.v)
}

// Mul returns b * n.
func (b BaseUnits) Mul(n uint64) BaseUnits {
	return BaseUnits{v: new(big.Int).Mul(b.Int(), new(big.Int).SetUint64(n))}
}

func (b BaseUnits) Add(o BaseUnits) BaseUnits {
	return BaseUnits{v: new(big.Int).Add(b.Int(), o.Int())}
}

func (b BaseUnits) Cmp(o BaseUnits) int {
	return b.Int().Cmp(o.Int())
}

func (b BaseUnits) IsZero() bool {
	return b.v == nil || b.v.Sign() == 0
}

func (b BaseUnits) String() string {
	return b.Int().String()
}

// MarshalJSON encodes as a decimal string, uint256 does not fit a JSON number.
func (b BaseUnits) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *BaseUnits) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseBaseUnits(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}
