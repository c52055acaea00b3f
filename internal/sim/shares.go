package sim

import (
	"sync"

	"github.com/holiman/uint256"
)

// ShareLedger is the in-memory share token: plain mint/burn bookkeeping with
// a running total supply.
type ShareLedger struct {
	mu       sync.Mutex
	balances map[string]*uint256.Int
	supply   *uint256.Int
}

func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		balances: make(map[string]*uint256.Int),
		supply:   uint256.NewInt(0),
	}
}

func (s *ShareLedger) Mint(account string, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[account] == nil {
		s.balances[account] = uint256.NewInt(0)
	}
	s.balances[account].Add(s.balances[account], amount)
	s.supply.Add(s.supply, amount)
	return nil
}

func (s *ShareLedger) Burn(account string, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.balances[account]
	if bal == nil || bal.Lt(amount) {
		return ErrFunds
	}
	bal.Sub(bal, amount)
	s.supply.Sub(s.supply, amount)
	return nil
}

func (s *ShareLedger) BalanceOf(account string) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.balances[account]
	if bal == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(bal)
}

func (s *ShareLedger) TotalSupply() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.supply)
}
