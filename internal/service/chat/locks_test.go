package chat

import (
	"sync"
	"testing"
)

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 20 {
		t.Fatalf("counter = %d, want 20", counter)
	}
	if n := k.size(); n != 0 {
		t.Fatalf("expected no retained keys, got %d", n)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	if n := k.size(); n != 2 {
		t.Fatalf("size = %d, want 2", n)
	}
	unlockB()
	unlockA()
}
