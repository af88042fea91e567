package cache

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
)

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a store notification")
	}
}

func TestResolveColdRead(t *testing.T) {
	s := NewStore()
	p := DefaultPolicy(&core.Config{StatsTTL: 5 * time.Minute})

	ch, cancel := s.Subscribe(KindCourse, "c1")
	defer cancel()

	v, st := Resolve(s, p, KindCourse, "c1", func() (interface{}, error) {
		return "fetched", nil
	})
	if v != nil || st.IsCached || !st.IsLoading {
		t.Fatalf("cold Resolve = %v, %+v; want nil value, loading", v, st)
	}

	waitFor(t, ch)
	v, st = Resolve(s, p, KindCourse, "c1", func() (interface{}, error) {
		t.Error("fetch ran again for a fresh partition")
		return nil, nil
	})
	if v != "fetched" || !st.IsCached || st.IsLoading || st.Err != nil {
		t.Fatalf("warm Resolve = %v, %+v; want fetched, cached", v, st)
	}
}

func TestResolveServesStaleWhileRefetching(t *testing.T) {
	s := NewStore()
	p := DefaultPolicy(&core.Config{StatsTTL: 5 * time.Minute})

	s.Set(KindCourse, "c1", "old")
	s.Invalidate(KindCourse, "c1")

	gate := make(chan struct{})
	ch, cancel := s.Subscribe(KindCourse, "c1")
	defer cancel()

	v, st := Resolve(s, p, KindCourse, "c1", func() (interface{}, error) {
		<-gate
		return "new", nil
	})
	if v != "old" || !st.IsCached || !st.IsLoading {
		t.Fatalf("stale Resolve = %v, %+v; want old value served while loading", v, st)
	}

	close(gate)
	waitFor(t, ch)
	if v, _ := s.Get(KindCourse, "c1"); v != "new" {
		t.Fatalf("value after refetch = %v, want new", v)
	}
}

func TestResolveSingleFlight(t *testing.T) {
	s := NewStore()
	p := DefaultPolicy(&core.Config{StatsTTL: 5 * time.Minute})

	var calls int32
	gate := make(chan struct{})
	fetch := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "v", nil
	}

	ch, cancel := s.Subscribe(KindStats, "c1")
	defer cancel()

	for i := 0; i < 5; i++ {
		if _, st := Resolve(s, p, KindStats, "c1", fetch); !st.IsLoading {
			t.Fatalf("Resolve #%d not loading", i)
		}
	}
	close(gate)
	waitFor(t, ch)

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("fetch ran %d times, want 1", n)
	}
}

func TestResolveFailureIsNotRetried(t *testing.T) {
	s := NewStore()
	p := DefaultPolicy(&core.Config{StatsTTL: 5 * time.Minute})
	boom := errors.New("network down")

	var calls int32
	fetch := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	ch, cancel := s.Subscribe(KindCourse, "c1")
	defer cancel()

	Resolve(s, p, KindCourse, "c1", fetch)
	waitFor(t, ch)

	// subsequent reads surface the error without refetching
	for i := 0; i < 3; i++ {
		_, st := Resolve(s, p, KindCourse, "c1", fetch)
		if st.Err != boom {
			t.Fatalf("Resolve #%d Err = %v, want %v", i, st.Err, boom)
		}
		if st.IsLoading {
			t.Fatalf("Resolve #%d is loading after a failure", i)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("fetch ran %d times, want 1", n)
	}

	// an explicit invalidation clears the error and allows a retry
	s.Invalidate(KindCourse, "c1")
	if _, st := Resolve(s, p, KindCourse, "c1", func() (interface{}, error) { return "v", nil }); st.Err != nil || !st.IsLoading {
		t.Fatalf("Resolve after Invalidate = %+v; want a fresh fetch", st)
	}
}
