package game

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
)

var (
	ErrMissingParam = errors.New("missing game parameter")
	ErrInvalidParam = errors.New("invalid game parameter")
)

// StringParam extracts a string parameter.
func StringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false
	}

	switch val := v.(type) {
	case string:
		return val, val != ""
	case fmt.Stringer:
		s := val.String()
		return s, s != ""
	default:
		return "", false
	}
}

// DecimalParam extracts a numeric parameter. The second result is false when
// the key is absent; an error is returned when it is present but not a finite number.
func DecimalParam(params map[string]any, key string) (decimal.Decimal, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return decimal.Zero, false, nil
	}

	switch val := v.(type) {
	case decimal.Decimal:
		return val, true, nil
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, false, nil
		}
		return *val, true, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, true, fmt.Errorf("%w: %s is not finite", ErrInvalidParam, key)
		}
		return decimal.NewFromFloat(val), true, nil
	case int:
		return decimal.NewFromInt(int64(val)), true, nil
	case int64:
		return decimal.NewFromInt(val), true, nil
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero, true, fmt.Errorf("%w: %s: %v", ErrInvalidParam, key, err)
		}
		return d, true, nil
	default:
		return decimal.Zero, true, fmt.Errorf("%w: %s has type %T", ErrInvalidParam, key, v)
	}
}

// Cents rounds an amount half-up to two decimal places.
func Cents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Settle builds the payout for a resolved game: the rounded win amount when
// won, otherwise the full stake as loss.
func Settle(bet decimal.Decimal, won bool, winAmount decimal.Decimal) model.Payout {
	if won {
		return model.Payout{WinAmount: Cents(winAmount), LossAmount: decimal.Zero}
	}
	return model.Payout{WinAmount: decimal.Zero, LossAmount: bet}
}

// Floor2 truncates a float to two decimal places.
func Floor2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Truncate(2)
}
