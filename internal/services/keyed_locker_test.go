package services

import (
	"sync"
	"testing"
)

func TestKeyedLocker(t *testing.T) {
	t.Run("serializes_same_key", func(t *testing.T) {
		locker := NewKeyedLocker()
		var wg sync.WaitGroup
		counter := 0

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locker.Lock("bucket")
				defer unlock()
				v := counter
				counter = v + 1
			}()
		}
		wg.Wait()

		if counter != 50 {
			t.Errorf("expected 50 increments, got %d", counter)
		}
	})

	t.Run("releases_entries", func(t *testing.T) {
		locker := NewKeyedLocker()
		unlockA := locker.Lock("a")
		unlockB := locker.Lock("b")
		unlockA()
		unlockB()

		if len(locker.locks) != 0 {
			t.Errorf("expected no retained locks, got %d", len(locker.locks))
		}
	})
}
