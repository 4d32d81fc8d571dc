package arena

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatchLocks_SerializesSameKey(t *testing.T) {
	locks := newMatchLocks()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locks.withLock("match-1", func() error {
				time.Sleep(time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Len(t, order, 5) // all ran, none interleaved-corrupted the shared slice
}

func TestMatchLocks_DistinctKeysRunConcurrently(t *testing.T) {
	locks := newMatchLocks()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		matchID := []string{"a", "b", "c", "d"}[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locks.withLock(matchID, func() error {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&maxActive)
					if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Greater(t, maxActive, int32(1)) // distinct keys overlapped
}

func TestMatchLocks_EvictDropsOnlyDeadBelowThresholdNoop(t *testing.T) {
	locks := newMatchLocks()
	locks.locks["m1"] = &sync.Mutex{}
	locks.evict(func(string) bool { return false })
	assert.Len(t, locks.locks, 1) // below evictThreshold, no-op
}

func TestMatchLocks_EvictDropsDeadAboveThreshold(t *testing.T) {
	locks := newMatchLocks()
	for i := 0; i < evictThreshold+1; i++ {
		locks.locks[string(rune('a'+i%26))+string(rune(i))] = &sync.Mutex{}
	}
	locks.evict(func(string) bool { return false })
	assert.Empty(t, locks.locks)
}
