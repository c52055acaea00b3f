package sim

import (
	"github.com/holiman/uint256"

	"github.com/openyield/treasury/internal/types"
)

// Book exposes the treasury account's holdings on the simulated venue.
type Book struct {
	venue *Venue
}

func NewBook(venue *Venue) *Book {
	return &Book{venue: venue}
}

func (b *Book) NativeBalance() *uint256.Int {
	b.venue.mu.Lock()
	defer b.venue.mu.Unlock()
	bal := b.venue.native[b.venue.treasury]
	if bal == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(bal)
}

func (b *Book) Balance(denom string) *uint256.Int {
	b.venue.mu.Lock()
	defer b.venue.mu.Unlock()
	accounts := b.venue.tokens[denom]
	if accounts == nil || accounts[b.venue.treasury] == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(accounts[b.venue.treasury])
}

func (b *Book) LiquidityBalance(pair types.PairID) *uint256.Int {
	b.venue.mu.Lock()
	defer b.venue.mu.Unlock()
	p, ok := b.venue.pools[pair]
	if !ok {
		return uint256.NewInt(0)
	}
	held := p.holders[b.venue.treasury]
	if held == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(held)
}

func (b *Book) TransferNative(to string, amount *uint256.Int) error {
	b.venue.mu.Lock()
	defer b.venue.mu.Unlock()
	if err := b.venue.debitNative(b.venue.treasury, amount); err != nil {
		return err
	}
	b.venue.creditNative(to, amount)
	return nil
}
