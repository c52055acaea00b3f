package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/treasury/internal/types"
)

const validManifest = `
base:
  symbol: BASE
  denom: ubase
  wrapped_denom: wbase
  precision: 6
pairs:
  - id: 1
    token0: {symbol: ATOM, denom: uatom, precision: 6, sim_price: {num: 5, den: 1}}
    token1: {symbol: BASE, denom: wbase, precision: 6}
    sim_reserve0: "1000000"
    sim_reserve1: "5000000"
  - id: 2
    token0: {symbol: OSMO, denom: uosmo, precision: 6}
    token1: {symbol: BASE, denom: wbase, precision: 6}
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPairsManifest(t *testing.T) {
	manifest, err := LoadPairsManifest(writeManifest(t, validManifest))
	require.NoError(t, err)

	assert.Equal(t, "wbase", manifest.Base.WrappedDenom)
	require.Len(t, manifest.Pairs, 2)
	assert.Equal(t, "1000000", manifest.Pairs[0].SimReserve0)
	require.NotNil(t, manifest.Pairs[0].Token0.SimPrice)
	assert.Equal(t, uint64(5), manifest.Pairs[0].Token0.SimPrice.Num)

	base := manifest.BaseToken()
	assert.Equal(t, "wbase", base.Denom)

	pairs := manifest.CandidatePairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, types.PairID(1), pairs[0].ID)
	assert.Equal(t, "uatom", pairs[0].Token0.Denom)
}

func TestLoadPairsManifestMissingFile(t *testing.T) {
	_, err := LoadPairsManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadPairsManifestReservedPairID(t *testing.T) {
	bad := `
base: {symbol: BASE, denom: ubase, wrapped_denom: wbase, precision: 6}
pairs:
  - id: 0
    token0: {symbol: ATOM, denom: uatom, precision: 6}
    token1: {symbol: BASE, denom: wbase, precision: 6}
`
	_, err := LoadPairsManifest(writeManifest(t, bad))
	assert.ErrorContains(t, err, "reserved")
}

func TestLoadPairsManifestDuplicateID(t *testing.T) {
	bad := `
base: {symbol: BASE, denom: ubase, wrapped_denom: wbase, precision: 6}
pairs:
  - id: 1
    token0: {symbol: ATOM, denom: uatom, precision: 6}
    token1: {symbol: BASE, denom: wbase, precision: 6}
  - id: 1
    token0: {symbol: OSMO, denom: uosmo, precision: 6}
    token1: {symbol: BASE, denom: wbase, precision: 6}
`
	_, err := LoadPairsManifest(writeManifest(t, bad))
	assert.ErrorContains(t, err, "duplicate")
}

func TestLoadPairsManifestNoPairs(t *testing.T) {
	bad := `
base: {symbol: BASE, denom: ubase, wrapped_denom: wbase, precision: 6}
pairs: []
`
	_, err := LoadPairsManifest(writeManifest(t, bad))
	assert.Error(t, err)
}

func TestLoadPairsManifestZeroSimPrice(t *testing.T) {
	bad := `
base: {symbol: BASE, denom: ubase, wrapped_denom: wbase, precision: 6}
pairs:
  - id: 1
    token0: {symbol: ATOM, denom: uatom, precision: 6, sim_price: {num: 0, den: 1}}
    token1: {symbol: BASE, denom: wbase, precision: 6}
`
	_, err := LoadPairsManifest(writeManifest(t, bad))
	assert.ErrorContains(t, err, "sim price")
}
