package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2016, 5, 24, 17, 0, 0, 0, time.UTC)

func TestNewValidatesParams(t *testing.T) {
	_, err := New(epoch, 500*time.Millisecond, 101)
	require.Error(t, err)
	_, err = New(epoch, 10*time.Second, 0)
	require.Error(t, err)
}

func TestSlotNumber(t *testing.T) {
	s, err := New(epoch, 10*time.Second, 101)
	require.NoError(t, err)

	assert.EqualValues(t, 0, s.SlotNumber(epoch.Unix()))
	assert.EqualValues(t, 0, s.SlotNumber(epoch.Unix()+9))
	assert.EqualValues(t, 1, s.SlotNumber(epoch.Unix()+10))
	assert.EqualValues(t, -1, s.SlotNumber(epoch.Unix()-1))

	now := epoch.Add(1000 * time.Second)
	assert.EqualValues(t, 100, s.WithClock(func() time.Time { return now }).CurrentSlot())
}

func TestCalcRound(t *testing.T) {
	s, err := New(epoch, 10*time.Second, 101)
	require.NoError(t, err)

	assert.EqualValues(t, 0, s.CalcRound(0))
	assert.EqualValues(t, 1, s.CalcRound(1))
	assert.EqualValues(t, 1, s.CalcRound(101))
	assert.EqualValues(t, 2, s.CalcRound(102))
	assert.EqualValues(t, 10, s.CalcRound(1010))
}
