package feepolicy

import (
	"testing"

	"github.com/lightninglabs/fundingcore/onchainwallet"
	"github.com/stretchr/testify/require"
)

type fixedTargetEstimator struct {
	targets []uint32
}

func (f *fixedTargetEstimator) EstimateFeePerKW(
	confTarget uint32) (onchainwallet.SatPerKWeight, error) {

	f.targets = append(f.targets, confTarget)

	// A synthetic estimator where a tighter (smaller) target always
	// yields a feerate no lower than a looser one, so we can assert
	// monotonicity end to end.
	return onchainwallet.SatPerKWeight(1000 / confTarget), nil
}

func TestBlockTargetTiers(t *testing.T) {
	tests := []struct {
		remaining int32
		want      uint32
	}{
		{200, 144},
		{144, 144},
		{100, 72},
		{72, 72},
		{40, 36},
		{36, 36},
		{20, 12},
		{18, 12},
		{15, 6},
		{12, 6},
		{5, 2},
		{2, 2},
		{1, 1},
		{0, 1},
		{-10, 1},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, blockTarget(tc.remaining))
	}
}

// TestBlockTargetMonotonic asserts the block-target is a non-increasing
// step function of confirmBefore - height.
func TestBlockTargetMonotonic(t *testing.T) {
	prev := blockTarget(1000)
	for r := int32(999); r >= -50; r-- {
		cur := blockTarget(r)
		require.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestTargetFeeRateUsesTieredTarget(t *testing.T) {
	est := &fixedTargetEstimator{}

	_, err := TargetFeeRate(est, 1005, 1000)
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, est.targets)
}
