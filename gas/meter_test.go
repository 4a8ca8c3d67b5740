package gas

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeterChargeWithinLimit(t *testing.T) {
	m := NewMeter(100, true, nil)
	require.NoError(t, m.Charge(40))
	require.Equal(t, uint64(40), m.Used())
	require.Equal(t, uint64(60), m.Remaining())
}

func TestMeterChargeOutOfGas(t *testing.T) {
	m := NewMeter(10, true, nil)
	require.Error(t, m.Charge(11))
	require.True(t, m.Exhausted())
	require.Equal(t, uint64(10), m.Used())
}

func TestMeterUnmeteredNeverFails(t *testing.T) {
	m := NewMeter(0, false, nil)
	require.NoError(t, m.Charge(1<<40))
	require.Equal(t, uint64(0), m.Used())
	require.False(t, m.Exhausted())
}

func TestMeterSeedResets(t *testing.T) {
	m := NewMeter(10, true, nil)
	_ = m.Charge(10)
	m.Seed(50)
	require.Equal(t, uint64(0), m.Used())
	require.Equal(t, uint64(50), m.Remaining())
}

func TestMeterChargeFiresCancelExactlyOnceOnExhaustion(t *testing.T) {
	var fired int
	m := NewMeter(10, true, func() { fired++ })
	require.NoError(t, m.Charge(5))
	require.Equal(t, 0, fired)
	require.Error(t, m.Charge(10))
	require.Equal(t, 1, fired)
	require.Error(t, m.Charge(1))
	require.Equal(t, 1, fired, "cancel must fire at most once across repeated charges past exhaustion")
}
