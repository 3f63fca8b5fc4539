package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatClearMaximum(t *testing.T) {
	t.Parallel()

	text, err := Format(PredictionVector{0.1, 0.7, 0.2}, Labels{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "b (70.0%)", text)
}

func TestFormatRounding(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		pred PredictionVector
		want string
	}{
		{"one decimal", PredictionVector{0.875, 0.125}, "a (87.5%)"},
		{"certain", PredictionVector{0, 1}, "b (100.0%)"},
		{"small", PredictionVector{0.0004, 0.0001}, "a (0.0%)"},
		{"rounds up", PredictionVector{0.12345, 0.1}, "a (12.3%)"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			text, err := Format(tc.pred, Labels{"a", "b"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, text)
		})
	}
}

func TestArgmaxTieGoesToFirstIndex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Argmax(PredictionVector{0.5, 0.5}))
	assert.Equal(t, 1, Argmax(PredictionVector{0.1, 0.45, 0.45}))
	assert.Equal(t, 2, Argmax(PredictionVector{0.1, 0.2, 0.3}))
	assert.Equal(t, -1, Argmax(nil))

	res, err := Classify(PredictionVector{0.25, 0.25, 0.25, 0.25}, Labels{"w", "x", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, "w", res.Label)
	assert.Equal(t, 0, res.Index)
}

func TestArgmaxNaNWins(t *testing.T) {
	t.Parallel()

	nan := float32(math.NaN())
	assert.Equal(t, 1, Argmax(PredictionVector{0.9, nan, 0.1}))
	assert.Equal(t, 0, Argmax(PredictionVector{nan, 0.9, nan}))
	assert.Equal(t, 2, Argmax(PredictionVector{0.2, 0.3, nan}))
}

func TestClassifyIndexOutOfRange(t *testing.T) {
	t.Parallel()

	_, err := Classify(PredictionVector{0.1, 0.2, 0.7}, Labels{"a", "b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))

	_, err = Format(PredictionVector{}, Labels{"a"})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestClassifyLongerVectorWithinLabels(t *testing.T) {
	t.Parallel()

	// more scores than labels is tolerated as long as the winner has a name
	res, err := Classify(PredictionVector{0.9, 0.05, 0.05}, Labels{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Label)
	assert.InDelta(t, 0.9, res.Confidence, 1e-6)
}
