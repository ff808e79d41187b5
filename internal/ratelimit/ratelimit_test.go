package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestWaitEnforcesSpacing(t *testing.T) {
	l := New(200 * time.Millisecond)

	l.Wait()
	start := time.Now()
	l.Wait()
	elapsed := time.Since(start)

	if elapsed < 200*time.Millisecond {
		t.Errorf("Second Wait returned after %v, want at least 200ms", elapsed)
	}
}

func TestWaitAcrossGoroutines(t *testing.T) {
	l := New(100 * time.Millisecond)

	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Wait()
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(stamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(stamps))
	}

	// Sort by time, then verify pairwise spacing.
	for i := 0; i < len(stamps); i++ {
		for j := i + 1; j < len(stamps); j++ {
			if stamps[j].Before(stamps[i]) {
				stamps[i], stamps[j] = stamps[j], stamps[i]
			}
		}
	}
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < 90*time.Millisecond { // small tolerance for timer resolution
			t.Errorf("Waits %d and %d separated by only %v", i-1, i, gap)
		}
	}
}

func TestZeroIntervalIsNoop(t *testing.T) {
	l := New(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		l.Wait()
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("100 no-op waits took %v", elapsed)
	}
}
