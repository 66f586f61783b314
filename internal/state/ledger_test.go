package state

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestLedger_MarkIsIdempotent(t *testing.T) {
	l := NewLedger()

	first, created := l.Mark("app", "attributes", "compileSdk=36", 1)
	if !created {
		t.Fatal("first Mark() should create a record")
	}
	if first.Seq != 1 || first.Checkpoint != 1 {
		t.Errorf("first record = %+v", first)
	}

	again, created := l.Mark("app", "attributes", "compileSdk=35", 2)
	if created {
		t.Error("second Mark() should be a no-op")
	}
	if !reflect.DeepEqual(again, first) {
		t.Errorf("second Mark() returned %+v, want original %+v", again, first)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestLedger_Queries(t *testing.T) {
	l := NewLedger()
	l.Mark("app", "attributes", "a", 1)
	l.Mark("lib", "attributes", "a", 1)
	l.Mark("app", "output-dir", "../build/app", 1)

	if !l.Applied("app", "output-dir") {
		t.Error("Applied(app, output-dir) = false")
	}
	if l.Applied("lib", "output-dir") {
		t.Error("Applied(lib, output-dir) = true")
	}
	if l.Has("other") {
		t.Error("Has(other) = true")
	}

	items := []string{}
	for _, r := range l.ForModule("app") {
		items = append(items, r.Item)
	}
	if !reflect.DeepEqual(items, []string{"attributes", "output-dir"}) {
		t.Errorf("ForModule(app) items = %v", items)
	}

	snap := l.Snapshot()
	for i, r := range snap {
		if r.Seq != i+1 {
			t.Errorf("Snapshot()[%d].Seq = %d", i, r.Seq)
		}
	}
}

func TestLedger_ConcurrentMark(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0

	for i := 0; i < 20; i++ {
		for j := 0; j < 5; j++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, ok := l.Mark(fmt.Sprintf("m%d", i), "attributes", "v", 1); ok {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}(i)
		}
	}
	wg.Wait()

	if created != 20 || l.Len() != 20 {
		t.Errorf("created = %d, Len() = %d, want 20", created, l.Len())
	}
}
