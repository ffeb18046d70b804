package sync

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	written := 0
	var wg sync.WaitGroup

	for range 50 {
		wg.Go(func() {
			_ = m.Do("exports/Jane_Doe_Certificate.pdf", func() error {
				written++
				return nil
			})
		})
	}
	wg.Wait()

	assert.Equal(t, 50, written)
}

func TestShardedMutex_DoReturnsError(t *testing.T) {
	m := NewShardedMutex()
	boom := errors.New("disk full")

	err := m.Do("a.pdf", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// The lock was released.
	m.Lock("a.pdf")
	m.Unlock("a.pdf")
}

func TestShardFor(t *testing.T) {
	assert.Equal(t, shardFor("CERT-10001"), shardFor("CERT-10001"))

	seen := make(map[int]bool)
	for _, key := range []string{"CERT-10001", "CERT-10002", "Jane_Doe_Certificate.pdf", "John_A._Smith_Certificate.pdf", "a", "b"} {
		idx := shardFor(key)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, shardCount)
		seen[idx] = true
	}
	assert.Greater(t, len(seen), 1)
}
