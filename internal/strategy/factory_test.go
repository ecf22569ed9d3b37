package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AllKinds(t *testing.T) {
	for _, kind := range Kinds() {
		s, err := New(kind, nil)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, s.Name(), kind)
	}
}

func TestNew_DecodesParams(t *testing.T) {
	s, err := New(KindRSI, map[string]any{"period": 7, "oversold": 25.0})
	require.NoError(t, err)
	rsi, ok := s.(*RSI)
	require.True(t, ok)
	assert.Equal(t, 7, rsi.params.Period)
	assert.InDelta(t, 25.0, rsi.params.Oversold, 1e-9)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("martingale", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy kind")
}

func TestNew_RejectsUnknownParam(t *testing.T) {
	_, err := New(KindRSI, map[string]any{"perriod": 7})
	assert.Error(t, err)
}
