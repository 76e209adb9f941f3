package explorer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmm-workbench/stackexplorer/internal/timeutil"
)

func TestRegistryLifecycle(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	r := NewRegistry(Options{Clock: clock})
	defer r.Close()

	a := r.Create(testInput())
	other := testInput()
	other.DatasetID = "ds-2"
	b := r.Create(other)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, r.Len())

	got, err := r.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, ErrViewNotFound))

	snaps := r.List()
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].ID < snaps[1].ID)

	a.Play()
	require.NoError(t, r.Remove(a.ID()))
	assert.Equal(t, 0, clock.ActiveTickers(), "removed view must stop its timer")
	assert.ErrorIs(t, r.Remove(a.ID()), ErrViewNotFound)

	assert.Equal(t, 1, r.RemoveDataset("ds-2"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryCloseStopsEveryTimer(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	r := NewRegistry(Options{Clock: clock})

	for i := 0; i < 3; i++ {
		r.Create(testInput()).Play()
	}
	require.Equal(t, 3, clock.ActiveTickers())

	r.Close()
	assert.Equal(t, 0, clock.ActiveTickers())
	assert.Equal(t, 0, r.Len())
}
