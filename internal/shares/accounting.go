/*

Share accounting: how many shares a deposit mints and how much of the idle
balance a redemption claims. All math is UQ112.112 with truncation, so
rounding loss always accrues to the treasury, never to the minter or
redeemer.

*/

package shares

import (
	"github.com/holiman/uint256"

	"github.com/openyield/treasury/internal/fixedpoint"
)

// DefaultIssuanceFactor seeds the share exchange rate on the first deposit:
// an empty treasury mints depositValue * DefaultIssuanceFactor shares.
const DefaultIssuanceFactor = 100

// MintAmount computes the shares minted for a deposit of depositValue given
// the treasury's pre-deposit total value and share supply. When either
// pre-deposit magnitude is zero the issuance bootstraps at
// DefaultIssuanceFactor. All three magnitudes must fit in 112 bits.
func MintAmount(depositValue, totalValueExclDeposit, totalSupply *uint256.Int) (*uint256.Int, error) {
	if !fixedpoint.FitsUint112(depositValue) ||
		!fixedpoint.FitsUint112(totalValueExclDeposit) ||
		!fixedpoint.FitsUint112(totalSupply) {
		return nil, fixedpoint.ErrOverflow
	}

	if totalValueExclDeposit.IsZero() || totalSupply.IsZero() {
		return new(uint256.Int).Mul(depositValue, uint256.NewInt(DefaultIssuanceFactor)), nil
	}

	ratio, err := fixedpoint.Fraction(depositValue, totalValueExclDeposit)
	if err != nil {
		return nil, err
	}
	return ratio.MulInt(totalSupply)
}

// Fraction returns the UQ112.112 ownership fraction amount/totalSupply.
func Fraction(amount, totalSupply *uint256.Int) (fixedpoint.Ratio, error) {
	return fixedpoint.Fraction(amount, totalSupply)
}

// IdleRedemption computes the idle-balance portion of a redemption: the
// share fraction applied to the base asset held outside the venue, rounded
// down. The deployed-liquidity portion is realized separately through the
// provisioning protocol.
func IdleRedemption(shareAmount, totalSupply, idleBalance *uint256.Int) (*uint256.Int, error) {
	ratio, err := fixedpoint.Fraction(shareAmount, totalSupply)
	if err != nil {
		return nil, err
	}
	return ratio.MulInt(idleBalance)
}
