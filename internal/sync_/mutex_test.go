package sync_

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutexed(t *testing.T) {
	assert := assert.New(t)
	m := NewMutexed(map[string]int{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Locked(func(v map[string]int) error {
				v["n"]++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(50, m.Get()["n"])

	old := m.Swap(map[string]int{"n": 1})
	assert.Equal(50, old["n"])
	assert.Equal(1, m.Get()["n"])
}
