package guild

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetCreatesOnce(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	states := make([]*State, 32)
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = r.Get("guild-1")
		}(i)
	}
	wg.Wait()

	for _, s := range states {
		assert.Same(t, states[0], s)
	}
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, "guild-1", states[0].ID)
	require.NotNil(t, states[0].Setlist)
	assert.Nil(t, states[0].Player)
}

func TestRegistry_GuildsAreIndependent(t *testing.T) {
	r := NewRegistry()

	a := r.Get("a")
	b := r.Get("b")

	assert.NotSame(t, a, b)
	assert.NotSame(t, a.Setlist, b.Setlist)
	assert.Len(t, r.All(), 2)
}

func TestRegistry_LookupAndRemove(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("a")
	assert.False(t, ok, "lookup must not create state")

	r.Get("a")
	_, ok = r.Lookup("a")
	assert.True(t, ok)

	r.Remove("a")
	_, ok = r.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestState_Generation(t *testing.T) {
	s := &State{}

	assert.Equal(t, uint64(0), s.Generation())
	assert.Equal(t, uint64(1), s.NextGeneration())
	assert.Equal(t, uint64(2), s.NextGeneration())
	assert.Equal(t, uint64(2), s.Generation())
}

func TestState_IdleTimer(t *testing.T) {
	s := &State{}
	var stopped []string

	s.ArmIdleTimer(func() bool { stopped = append(stopped, "first"); return true })
	s.ArmIdleTimer(func() bool { stopped = append(stopped, "second"); return true })
	s.StopIdleTimer()
	s.StopIdleTimer()

	assert.Equal(t, []string{"first", "second"}, stopped)
}
