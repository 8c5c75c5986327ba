package pump

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFakeTransitions(t *testing.T) {
	f := NewFakePump()
	assert.False(t, f.IsOn())

	assert.NoError(t, f.On())
	assert.NoError(t, f.On()) // no-op, already on
	assert.True(t, f.IsOn())

	assert.NoError(t, f.Off())
	assert.NoError(t, f.Off()) // no-op, already off
	assert.False(t, f.IsOn())

	ons, offs := f.Counts()
	assert.Equal(t, 1, ons)
	assert.Equal(t, 1, offs)
}

func TestFakeErrors(t *testing.T) {
	f := NewFakePump()
	f.OnError = errors.New("relay stuck")
	assert.Error(t, f.On())
	assert.False(t, f.IsOn())

	f.OnError = nil
	assert.NoError(t, f.On())
	f.OffError = errors.New("relay stuck")
	assert.Error(t, f.Off())
	assert.True(t, f.IsOn())
}

func TestFakeClose(t *testing.T) {
	f := NewFakePump()
	assert.NoError(t, f.On())
	assert.NoError(t, f.Close())
	assert.True(t, f.Closed())
	assert.False(t, f.IsOn())
}

func TestInterface(t *testing.T) {
	var _ Pump = (*FakePump)(nil)
	var _ Pump = (*GPIOPump)(nil)
}
