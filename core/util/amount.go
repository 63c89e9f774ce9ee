package util

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/pkg/errors"
)

const (
	// XCHDecimals is the number of decimals between XCH and mojos.
	XCHDecimals = 12
	// CATDecimals is the number of decimals of a CAT display amount.
	CATDecimals = 3
)

var decimalCtx = apd.BaseContext.WithPrecision(40)

// ParseAmount converts a decimal string ("0.0005") into base units. Digits
// beyond the given number of decimals are truncated, never rounded up.
func ParseAmount(s string, decimals int32) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid amount %q", s)
	}
	if d.Negative {
		return 0, errors.Errorf("negative amount %q", s)
	}
	var scaled apd.Decimal
	if _, err := decimalCtx.Mul(&scaled, d, apd.New(1, decimals)); err != nil {
		return 0, errors.WithStack(err)
	}
	var whole apd.Decimal
	if _, err := decimalCtx.RoundToIntegralValue(&whole, &scaled); err != nil {
		return 0, errors.WithStack(err)
	}
	if whole.Cmp(&scaled) > 0 {
		if _, err := decimalCtx.Sub(&whole, &whole, apd.New(1, 0)); err != nil {
			return 0, errors.WithStack(err)
		}
	}
	v, err := whole.Int64()
	if err != nil {
		return 0, errors.Wrapf(err, "amount %q out of range", s)
	}
	return uint64(v), nil
}

// FormatAmount renders base units with a fixed number of decimals.
func FormatAmount(v uint64, decimals int32) string {
	d := apd.New(0, 0)
	d.Coeff.SetUint64(v)
	d.Exponent = -decimals
	return d.Text('f')
}
