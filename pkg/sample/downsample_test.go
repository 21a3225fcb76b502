package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spectrum(n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{Wavelength: 795 + i, Signal: float64(i) * 0.01, DC: 0.5}
	}
	return out
}

func TestDownsample_NoDownsampling(t *testing.T) {
	results := spectrum(3)

	got := Downsample(nil, results, 10)
	assert.Equal(t, results, got)

	dst := make([]Result, 0, 10)
	got = Downsample(dst, results, 10)
	assert.Equal(t, results, got)
	assert.Equal(t, cap(dst), cap(got))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	results := spectrum(100)

	dst := make([]Result, 0, 20)
	got := Downsample(dst, results, 10)
	require.Len(t, got, 10)

	assert.Equal(t, results[0], got[0])
	assert.GreaterOrEqual(t, got[len(got)-1].Signal, 0.8)
	assert.Equal(t, cap(dst), cap(got))
}

func TestDownsample_DestinationReuse(t *testing.T) {
	dst := make([]Result, 0, 10)
	first := Downsample(dst, spectrum(2), 10)
	require.Len(t, first, 2)

	second := Downsample(first, spectrum(3), 10)
	require.Len(t, second, 3)
	assert.Equal(t, cap(first), cap(second))
}

func TestDownsample_Edges(t *testing.T) {
	assert.Empty(t, Downsample(nil, nil, 10))
	assert.Len(t, Downsample(nil, spectrum(10), 10), 10)
	assert.Len(t, Downsample(nil, spectrum(50), 0), 50)
}
