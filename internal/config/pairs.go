/*

Candidate pair manifest. The base asset and the ordered candidate pair set
are declared in a YAML file and fixed for the lifetime of the process; the
treasury never adds or removes candidates at runtime.

*/

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openyield/treasury/internal/types"
)

// BaseAsset describes the value-denominating asset users deposit, together
// with its wrapped venue form.
type BaseAsset struct {
	Symbol       string `yaml:"symbol"`
	Denom        string `yaml:"denom"`
	WrappedDenom string `yaml:"wrapped_denom"`
	Precision    int    `yaml:"precision"`
}

// PairsManifest is the parsed YAML manifest.
type PairsManifest struct {
	Base  BaseAsset   `yaml:"base"`
	Pairs []PairEntry `yaml:"pairs"`
}

// PairEntry is one candidate pair declaration. The sim_* fields seed the
// simulated venue in dry-run mode and are ignored otherwise.
type PairEntry struct {
	ID          types.PairID `yaml:"id"`
	Token0      tokenEntry   `yaml:"token0"`
	Token1      tokenEntry   `yaml:"token1"`
	SimReserve0 string       `yaml:"sim_reserve0,omitempty"`
	SimReserve1 string       `yaml:"sim_reserve1,omitempty"`
}

type tokenEntry struct {
	Symbol    string    `yaml:"symbol"`
	Denom     string    `yaml:"denom"`
	Precision int       `yaml:"precision"`
	SimPrice  *SimPrice `yaml:"sim_price,omitempty"`
}

// SimPrice is an external-market price for dry-run seeding: num base units
// per den token units.
type SimPrice struct {
	Num uint64 `yaml:"num"`
	Den uint64 `yaml:"den"`
}

// LoadPairsManifest reads and validates the manifest at path.
func LoadPairsManifest(path string) (*PairsManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pairs manifest: %w", err)
	}

	var manifest PairsManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse pairs manifest: %w", err)
	}

	if manifest.Base.Denom == "" || manifest.Base.WrappedDenom == "" {
		return nil, fmt.Errorf("pairs manifest missing base asset denoms")
	}
	if len(manifest.Pairs) == 0 {
		return nil, fmt.Errorf("pairs manifest declares no candidate pairs")
	}

	seen := make(map[types.PairID]bool, len(manifest.Pairs))
	for _, p := range manifest.Pairs {
		if p.ID == types.NoPair {
			return nil, fmt.Errorf("pair ID 0 is reserved for the idle state")
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate pair ID %d in manifest", p.ID)
		}
		seen[p.ID] = true
		if p.Token0.Denom == "" || p.Token1.Denom == "" {
			return nil, fmt.Errorf("pair %d has an empty token denom", p.ID)
		}
		for _, t := range []tokenEntry{p.Token0, p.Token1} {
			if t.SimPrice != nil && (t.SimPrice.Num == 0 || t.SimPrice.Den == 0) {
				return nil, fmt.Errorf("pair %d declares a zero sim price for %s", p.ID, t.Denom)
			}
		}
	}

	return &manifest, nil
}

// BaseToken returns the base asset as an engine token (wrapped venue form).
func (m *PairsManifest) BaseToken() types.Token {
	return types.Token{
		Symbol:    m.Base.Symbol,
		Denom:     m.Base.WrappedDenom,
		Precision: m.Base.Precision,
	}
}

// CandidatePairs returns the manifest's pairs in declared order.
func (m *PairsManifest) CandidatePairs() []types.Pair {
	pairs := make([]types.Pair, 0, len(m.Pairs))
	for _, p := range m.Pairs {
		pairs = append(pairs, types.Pair{
			ID: p.ID,
			Token0: types.Token{
				Symbol:    p.Token0.Symbol,
				Denom:     p.Token0.Denom,
				Precision: p.Token0.Precision,
			},
			Token1: types.Token{
				Symbol:    p.Token1.Symbol,
				Denom:     p.Token1.Denom,
				Precision: p.Token1.Precision,
			},
		})
	}
	return pairs
}
