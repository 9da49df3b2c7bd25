package syncx

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(42)
	assert.Equal(t, 42, g.Get())

	g.Set(100)
	assert.Equal(t, 100, g.Get())
}

func TestGuardSwap(t *testing.T) {
	g := NewGuard("detecting")

	old := g.Swap("processing")
	assert.Equal(t, "detecting", old)
	assert.Equal(t, "processing", g.Get())
}

func TestGuardUpdate(t *testing.T) {
	g := NewGuard(10)

	result := g.Update(func(v *int) any {
		old := *v
		*v = 20
		return old
	})

	assert.Equal(t, 10, result)
	assert.Equal(t, 20, g.Get())
}

func TestGuardUpdateConditional(t *testing.T) {
	type snapshot struct {
		phase    string
		progress float64
	}
	g := NewGuard(snapshot{phase: "detecting"})

	changed := g.Update(func(s *snapshot) any {
		next := snapshot{phase: "detecting"}
		if *s == next {
			return false
		}
		*s = next
		return true
	}).(bool)
	assert.False(t, changed, "identical value must read as unchanged")

	changed = g.Update(func(s *snapshot) any {
		*s = snapshot{phase: "processing", progress: 1}
		return true
	}).(bool)
	assert.True(t, changed)
	assert.Equal(t, "processing", g.Get().phase)
}

func TestGuardConcurrentSafety(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Update(func(v *int) any {
				*v++
				return nil
			})
		}()
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Get()
		}()
	}

	wg.Wait()
	assert.Equal(t, 100, g.Get())
}
