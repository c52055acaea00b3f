/*
Display conversions between integer base units and human-readable decimals.
The engine itself computes exclusively on integer base units; these helpers
exist for the logging and web layers only.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/holiman/uint256"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// BaseUnitsToDisplay converts an integer base-unit amount to a float with the
// given decimal precision. Lossy by nature; never feed the result back into
// engine math.
func BaseUnitsToDisplay(amount *uint256.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount == nil {
		return 0, ErrAmountNil
	}

	decAmount, err := sdkmath.LegacyNewDecFromStr(amount.Dec())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result, err := decAmount.Quo(factor).Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}

	return result, nil
}

// DisplayToBaseUnits converts a human-readable decimal amount into integer
// base units with the given precision, truncating any sub-unit remainder.
func DisplayToBaseUnits(amount float64, precision int) (*uint256.Int, error) {
	if precision < 0 || precision > 18 {
		return nil, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount is negative", ErrConversionFailed)
	}
	if amount == 0 {
		return uint256.NewInt(0), nil
	}

	// String round-trip avoids binary floating point artifacts.
	formatStr := fmt.Sprintf("%%.%df", precision)
	decAmount, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf(formatStr, amount))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	scaled := decAmount.Mul(factor).TruncateInt()
	out, err := uint256.FromDecimal(scaled.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return out, nil
}
