package sim

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// Oracle records price observations against the simulated venue. Consult
// answers from the last recorded observation; Update refreshes it from the
// venue's current spot price, so readings lag the market until updated.
type Oracle struct {
	venue *Venue

	mu       sync.Mutex
	observed map[string]extPrice
}

func NewOracle(venue *Venue) *Oracle {
	return &Oracle{
		venue:    venue,
		observed: make(map[string]extPrice),
	}
}

func (o *Oracle) AddPair(denom string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.observed[denom]; ok {
		return nil
	}
	return o.refresh(denom)
}

func (o *Oracle) PairExists(denom string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.observed[denom]
	return ok || denom == o.venue.baseDenom || denom == o.venue.nativeDenom
}

func (o *Oracle) Update(denom string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.refresh(denom)
}

// Consult values amount of denom in base units at the recorded observation.
// The base asset itself is always worth face value.
func (o *Oracle) Consult(denom string, amount *uint256.Int) (*uint256.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if denom == o.venue.baseDenom || denom == o.venue.nativeDenom {
		return new(uint256.Int).Set(amount), nil
	}
	p, ok := o.observed[denom]
	if !ok {
		return nil, fmt.Errorf("%w: %s not tracked", ErrUnknownDenom, denom)
	}
	out := new(uint256.Int).Mul(amount, p.num)
	return out.Div(out, p.den), nil
}

func (o *Oracle) refresh(denom string) error {
	o.venue.mu.Lock()
	num, den, err := o.venue.spotPrice(denom)
	o.venue.mu.Unlock()
	if err != nil {
		return err
	}
	o.observed[denom] = extPrice{num: num, den: den}
	return nil
}
