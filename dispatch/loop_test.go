package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLoop_Order(t *testing.T) {
	l := NewLoop(nil)
	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	l.Close()

	if len(got) != 100 {
		t.Fatalf("ran %d functions", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d ran %d", i, v)
		}
	}
	if l.Post(func() {}) {
		t.Error("Post after Close succeeded")
	}
}

func TestLoop_SurvivesPanic(t *testing.T) {
	l := NewLoop(nil)
	var ran atomic.Bool
	l.Post(func() { panic("boom") })
	l.Post(func() { ran.Store(true) })
	l.Close()
	if !ran.Load() {
		t.Error("loop stopped after a panic")
	}
}

func TestPool(t *testing.T) {
	p := NewPool(0)
	if p.Size() != DefaultWorkers {
		t.Errorf("Size = %d", p.Size())
	}
	var n atomic.Int32
	for i := 0; i < 50; i++ {
		if err := p.Submit(context.Background(), func() { n.Add(1) }); err != nil {
			t.Fatal(err)
		}
	}
	p.Close()
	if n.Load() != 50 {
		t.Errorf("ran %d tasks", n.Load())
	}
	if err := p.Submit(context.Background(), func() {}); err == nil {
		t.Error("Submit after Close succeeded")
	}
}
