package services

import (
	"sync"
	"testing"
	"time"
)

func TestSeenRecently(t *testing.T) {
	now := time.Now()
	cache := NewDedupeCache(time.Minute)
	cache.now = func() time.Time { return now }

	if cache.SeenRecently("m1") {
		t.Errorf("First sighting must report false")
	}
	if !cache.SeenRecently("m1") {
		t.Errorf("Second sighting within the TTL must report true")
	}

	now = now.Add(2 * time.Minute)
	if cache.SeenRecently("m1") {
		t.Errorf("Sighting after the TTL must report false again")
	}
}

func TestSeenRecentlyEmptyID(t *testing.T) {
	cache := NewDedupeCache(time.Minute)

	for i := 0; i < 3; i++ {
		if cache.SeenRecently("") {
			t.Fatalf("An empty id must never be treated as seen")
		}
	}
	if cache.Len() != 0 {
		t.Errorf("An empty id must not be recorded")
	}
}

func TestSeenRecentlyEvictsExpired(t *testing.T) {
	now := time.Now()
	cache := NewDedupeCache(time.Minute)
	cache.now = func() time.Time { return now }

	cache.SeenRecently("m1")
	cache.SeenRecently("m2")

	now = now.Add(2 * time.Minute)
	cache.SeenRecently("m3")

	if cache.Len() != 1 {
		t.Errorf("Expected expired entries to be purged, have %d", cache.Len())
	}
}

func TestSeenRecentlyConcurrent(t *testing.T) {
	cache := NewDedupeCache(time.Minute)

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- cache.SeenRecently("m1")
		}()
	}
	wg.Wait()
	close(results)

	unseen := 0
	for seen := range results {
		if !seen {
			unseen++
		}
	}
	if unseen != 1 {
		t.Errorf("Exactly one concurrent caller may observe unseen, got %d", unseen)
	}
}
