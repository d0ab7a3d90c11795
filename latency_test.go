package gossipsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mean(s Sampler, n int) float64 {
	total := 0
	for i := 0; i < n; i++ {
		total += s()
	}
	return float64(total) / float64(n)
}

func TestNormalSampler(t *testing.T) {
	rng := NewSeededSource(11)
	s := NormalSampler(50, 20, rng)
	for i := 0; i < 5000; i++ {
		require.GreaterOrEqual(t, s(), 0)
	}
	assert.InDelta(t, 50, mean(s, 20000), 2.0)
}

func TestNormalSamplerFloorsAtZero(t *testing.T) {
	s := NormalSampler(-100, 1, NewSeededSource(3))
	for i := 0; i < 1000; i++ {
		require.Equal(t, 0, s())
	}
}

func TestNormalSamplerZeroStddev(t *testing.T) {
	s := NormalSampler(7, 0, NewSeededSource(3))
	assert.Equal(t, 7, s())
	assert.Equal(t, 7, s())
}

func TestExponentialSampler(t *testing.T) {
	// a die that always shows 0 succeeds on the first trial: 1 * 64/32
	s := ExponentialSampler(64, &fixedSource{pick: 0})
	assert.Equal(t, 2, s())

	s = ExponentialSampler(320, NewSeededSource(5))
	for i := 0; i < 1000; i++ {
		require.GreaterOrEqual(t, s(), 10)
	}
	assert.InDelta(t, 320, mean(s, 20000), 15.0)

	s = ExponentialSampler(-64, NewSeededSource(5))
	for i := 0; i < 100; i++ {
		require.Equal(t, 0, s())
	}
}

func TestComposition(t *testing.T) {
	assert.Equal(t, 7, Convolve(ConstSampler(3), ConstSampler(4))())
	assert.Equal(t, 0, Convolve()())
	assert.Equal(t, 6, Transform(ConstSampler(3), func(v int) int { return v * 2 })())
	assert.Equal(t, 0, NonNegative(ConstSampler(-5))())
	assert.Equal(t, 4, NonNegative(ConstSampler(4))())
}

func TestDefaultSampler(t *testing.T) {
	s := DefaultSampler(50, NewSeededSource(17))
	for i := 0; i < 5000; i++ {
		require.GreaterOrEqual(t, s(), 0)
	}
	assert.InDelta(t, 50, mean(s, 20000), 2.0)
}

func TestBuildSampler(t *testing.T) {
	rng := NewSeededSource(1)

	s, err := BuildSampler(LatencyDesc{Model: "constant", Mean: 9}, rng)
	require.NoError(t, err)
	assert.Equal(t, 9, s())

	s, err = BuildSampler(LatencyDesc{Model: "constant", Mean: -9}, rng)
	require.NoError(t, err)
	assert.Equal(t, 0, s())

	s, err = BuildSampler(LatencyDesc{Model: "convolve", Components: []LatencyDesc{
		{Model: "constant", Mean: 2},
		{Model: "constant", Mean: 5},
	}}, rng)
	require.NoError(t, err)
	assert.Equal(t, 7, s())

	s, err = BuildSampler(LatencyDesc{Mean: 30}, rng)
	require.NoError(t, err)
	assert.InDelta(t, 30, mean(s, 20000), 1.5)

	_, err = BuildSampler(LatencyDesc{Model: "convolve"}, rng)
	require.Error(t, err)

	_, err = BuildSampler(LatencyDesc{Model: "pareto", Mean: 1}, rng)
	require.Error(t, err)
}

func TestSamplersNeverNegative(t *testing.T) {
	rng := NewSeededSource(23)
	samplers := map[string]Sampler{
		"normal":      NonNegative(NormalSampler(1, 10, rng)),
		"exponential": ExponentialSampler(3, rng),
		"convolve":    Convolve(NonNegative(NormalSampler(0, 5, rng)), ExponentialSampler(1, rng)),
	}
	for name, s := range samplers {
		for i := 0; i < 2000; i++ {
			require.GreaterOrEqual(t, s(), 0, name)
		}
	}
}
