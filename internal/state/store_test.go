package state

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func TestStore_DispatchAndSubscribe(t *testing.T) {
	s := NewStore(Initial(), nil)

	var seen []bool
	unsubscribe := s.Subscribe(func(st State) {
		seen = append(seen, st.Traces.Fetching)
	})

	s.Dispatch(Request(EntityTraces, ""))
	s.Dispatch(Receive(EntityTraces, "", json.RawMessage(`{"results":[]}`), nil))
	unsubscribe()
	s.Dispatch(Invalidate(EntityTraces, ""))

	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("subscriber saw %v", seen)
	}
	if got := s.GetState().Traces; got.Fetched {
		t.Errorf("traces not invalidated: %+v", got)
	}
}

func TestStore_BeginOrdersSequenceAndDispatch(t *testing.T) {
	s := NewStore(Initial(), nil)

	var (
		mu      sync.Mutex
		reduced []uint64
	)
	s.Subscribe(func(st State) {
		mu.Lock()
		reduced = append(reduced, st.Traces.Seq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	seqs := make(chan uint64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seqs <- s.Begin(Request(EntityTraces, "")).Seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[uint64]bool)
	for seq := range seqs {
		if seq == 0 || seen[seq] {
			t.Fatalf("duplicate or zero sequence %d", seq)
		}
		seen[seq] = true
	}

	// The request issued last must be the one that owns the slot.
	if got := s.GetState().Traces.Seq; got != 100 {
		t.Errorf("Traces.Seq = %d, want 100", got)
	}
	if got := s.Begin(Request(EntityTraces, "")).Seq; got != 101 {
		t.Errorf("next Begin() seq = %d, want 101", got)
	}

	// Begin keeps a caller-provided sequence.
	if got := s.Begin(Action{Kind: KindRequest, Entity: EntityPhotos, Seq: 7}).Seq; got != 7 {
		t.Errorf("Begin() replaced an explicit seq: %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reduced) != 102 {
		t.Errorf("subscriber ran %d times, want 102", len(reduced))
	}
}

func TestStore_ConcurrentDispatchIsSerialized(t *testing.T) {
	s := NewStore(Initial(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			s.Dispatch(Request(EntityTrace, id))
			s.Dispatch(Receive(EntityTrace, id, json.RawMessage(`{}`), nil))
		}(i)
	}
	wg.Wait()

	if got := len(s.GetState().IndividualTraces); got != 26 {
		t.Errorf("len(IndividualTraces) = %d, want 26", got)
	}
}

func TestStore_Run(t *testing.T) {
	s := NewStore(Initial(), nil)
	got := s.Run(context.Background(), func(ctx context.Context, d Dispatcher) Action {
		d.Dispatch(Request(EntityUsers, ""))
		a := Receive(EntityUsers, "", json.RawMessage(`{"results":[]}`), nil)
		d.Dispatch(a)
		return a
	})
	if got.Kind != KindReceive || !s.GetState().Users.Fetched {
		t.Errorf("Run() = %+v", got)
	}
}
