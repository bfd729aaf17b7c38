package chain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tewo-market/gateway/internal/models"
)

// Decimals of the native asset.
const Decimals = 18

// ToBaseUnits converts a natural-unit amount ("2", "0.5") to base units.
// Precision beyond 18 decimals is rejected rather than rounded.
func ToBaseUnits(natural string) (models.BaseUnits, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(natural))
	if err != nil {
		return models.BaseUnits{}, fmt.Errorf("%w: %q", models.ErrInvalidAmount, natural)
	}
	if d.IsNegative() {
		return models.BaseUnits{}, fmt.Errorf("%w: negative amount %q", models.ErrInvalidAmount, natural)
	}

	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return models.BaseUnits{}, fmt.Errorf("%w: more than %d decimals in %q", models.ErrInvalidAmount, Decimals, natural)
	}
	return models.NewBaseUnits(scaled.BigInt()), nil
}

// FromBaseUnits converts base units to the natural unit without rounding.
func FromBaseUnits(b models.BaseUnits) decimal.Decimal {
	return decimal.NewFromBigInt(b.Int(), -Decimals)
}
