package entity

import (
	"sync"
	"testing"
)

func TestIDGeneratorUnique(t *testing.T) {
	var g IDGenerator
	const workers, per = 8, 1000

	ids := make(chan ID, workers*per)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range per {
				ids <- g.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ID]bool, workers*per)
	for id := range ids {
		if id == 0 {
			t.Fatal("generator returned id 0")
		}
		if seen[id] {
			t.Fatalf("id %d returned twice", id)
		}
		seen[id] = true
	}
}

func TestNewHandle(t *testing.T) {
	var g IDGenerator
	a, b := g.NewHandle("minecraft:player"), g.NewHandle("minecraft:zombie")
	if a.ID == b.ID || a.UUID == b.UUID {
		t.Fatalf("handles share identity: %+v %+v", a, b)
	}
	if a.Type != "minecraft:player" {
		t.Fatalf("type = %q", a.Type)
	}
}
