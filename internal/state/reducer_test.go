package state

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func mapPointer(k Keyed) uintptr { return reflect.ValueOf(k).Pointer() }

func TestBaseAPIReducer_IgnoresUnrelatedActions(t *testing.T) {
	reduce := BaseAPIReducer(EntityTraces, NewSlotWith(`[]`))
	prev := Slot{Fetched: true, Data: json.RawMessage(`{"results":[]}`), Seq: 3}

	tests := []struct {
		name string
		a    Action
	}{
		{"other entity", Request(EntityPhotos, "")},
		{"unknown kind", Action{Kind: Kind(42), Entity: EntityTraces}},
		{"keyed action", Request(EntityTraces, "t1")},
		{"update kind", Update(EntityTraces, "", map[string]any{"x": 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reduce(prev, tt.a)
			if !reflect.DeepEqual(got, prev) {
				t.Errorf("slot changed: %+v", got)
			}
		})
	}
}

func TestBaseKeyedAPIReducer_IdentityKeepsSameMap(t *testing.T) {
	reduce := BaseKeyedAPIReducer(EntityTrace, NewSlot())
	prev := Keyed{"t1": {Fetched: true, Data: json.RawMessage(`{}`)}}

	got := reduce(prev, Request(EntityPhoto, "t1"))
	if mapPointer(got) != mapPointer(prev) {
		t.Error("expected the same map for an unrelated action")
	}
	got = reduce(prev, Receive(EntityTrace, "", nil, nil))
	if mapPointer(got) != mapPointer(prev) {
		t.Error("expected the same map for an unkeyed receive")
	}
}

func TestBaseAPIReducer_RequestResetsTransientFields(t *testing.T) {
	reduce := BaseAPIReducer(EntityTraces, NewSlotWith(`[]`))
	errored := Slot{Fetched: true, Err: errors.New("boom"), Data: json.RawMessage(`{"a":1}`)}

	got := reduce(errored, Action{Kind: KindRequest, Entity: EntityTraces, Seq: 7})
	if !got.Fetching || got.Fetched || got.Err != nil || string(got.Data) != `{}` {
		t.Errorf("unexpected slot %+v", got)
	}
	if got.Seq != 7 {
		t.Errorf("Seq = %d, want 7", got.Seq)
	}
}

func TestBaseAPIReducer_ReceiveSuccess(t *testing.T) {
	reduce := BaseAPIReducer(EntityTraces, NewSlotWith(`[]`))
	at := time.Date(2019, 4, 1, 12, 0, 0, 0, time.UTC)
	data := json.RawMessage(`{"results":[{"id":"t1"}]}`)

	pending := reduce(NewSlot(), Request(EntityTraces, ""))
	got := reduce(pending, Action{Kind: KindReceive, Entity: EntityTraces, Data: data, ReceivedAt: at})

	want := Slot{Fetching: false, Fetched: true, ReceivedAt: at, Data: data}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestBaseAPIReducer_ReceiveFailureClearsData(t *testing.T) {
	reduce := BaseAPIReducer(EntityPhotos, NewSlotWith(`[]`))
	boom := errors.New("boom")

	got := reduce(NewSlot(), Action{
		Kind:   KindReceive,
		Entity: EntityPhotos,
		Data:   json.RawMessage(`{"results":[1]}`),
		Err:    boom,
	})
	if got.Err != boom {
		t.Errorf("Err = %v", got.Err)
	}
	if string(got.Data) != `{}` {
		t.Errorf("Data = %s, want {}", got.Data)
	}
	if !got.Fetched || got.Fetching {
		t.Errorf("unexpected flags %+v", got)
	}
}

func TestBaseAPIReducer_Invalidate(t *testing.T) {
	initial := NewSlotWith(`{"loggedIn":false}`)
	reduce := BaseAPIReducer(EntityAuthenticatedUser, initial)
	logged := Slot{Fetched: true, Data: json.RawMessage(`{"osmId":"1"}`)}

	got := reduce(logged, Invalidate(EntityAuthenticatedUser, ""))
	if !reflect.DeepEqual(got, initial) {
		t.Errorf("got %+v, want initial", got)
	}
}

func TestBaseKeyedAPIReducer_Isolation(t *testing.T) {
	reduce := BaseKeyedAPIReducer(EntityTrace, NewSlot())
	k2 := Slot{Fetched: true, Data: json.RawMessage(`{"properties":{"id":"t2"}}`)}
	prev := Keyed{"t2": k2}

	actions := []Action{
		Request(EntityTrace, "t1"),
		Receive(EntityTrace, "t1", json.RawMessage(`{"properties":{"id":"t1"}}`), nil),
		Receive(EntityTrace, "t1", nil, errors.New("boom")),
		Invalidate(EntityTrace, "t1"),
	}
	state := prev
	for _, a := range actions {
		next := reduce(state, a)
		if !reflect.DeepEqual(next["t2"], k2) {
			t.Fatalf("%s altered t2: %+v", a.Type(), next["t2"])
		}
		state = next
	}
	if _, ok := state["t1"]; !ok {
		t.Error("invalidate removed the key instead of resetting it")
	}
	if !reflect.DeepEqual(state["t1"], NewSlot()) {
		t.Errorf("t1 = %+v, want initial slot", state["t1"])
	}
	if len(prev) != 1 {
		t.Error("reducer mutated the previous map")
	}
}

func TestBaseKeyedAPIReducer_InvalidateAll(t *testing.T) {
	reduce := BaseKeyedAPIReducer(EntityPhoto, NewSlot())
	p1 := Slot{Fetched: true, Data: json.RawMessage(`{"id":"p1"}`), Seq: 4}
	got := reduce(Keyed{"p1": p1}, Invalidate(EntityPhoto, ""))
	want := NewSlot()
	want.Seq = 4
	if !reflect.DeepEqual(got["p1"], want) {
		t.Errorf("p1 = %+v, want reset slot keeping seq 4", got["p1"])
	}
	if empty := reduce(Keyed{}, Invalidate(EntityPhoto, "")); len(empty) != 0 {
		t.Errorf("invalidating an empty collection = %v", empty)
	}
}

func TestBaseAPIReducer_ReceiveAfterInvalidateIsDropped(t *testing.T) {
	reduce := BaseAPIReducer(EntityTraces, NewSlotWith(`[]`))

	s := reduce(NewSlotWith(`[]`), Action{Kind: KindRequest, Entity: EntityTraces, Seq: 1})
	s = reduce(s, Invalidate(EntityTraces, ""))
	s = reduce(s, Action{Kind: KindReceive, Entity: EntityTraces, Seq: 1, Data: json.RawMessage(`{"results":[{"id":"t1"}]}`)})

	if s.Fetched || s.Fetching {
		t.Fatalf("late receive repopulated an invalidated slot: %+v", s)
	}
	if string(s.Data) != `[]` {
		t.Errorf("Data = %s, want []", s.Data)
	}

	// A fresh request after the reset is sequenced above the floor and lands.
	s = reduce(s, Action{Kind: KindRequest, Entity: EntityTraces, Seq: 2})
	s = reduce(s, Action{Kind: KindReceive, Entity: EntityTraces, Seq: 2, Data: json.RawMessage(`{"results":[]}`)})
	if !s.Fetched || string(s.Data) != `{"results":[]}` {
		t.Errorf("fresh receive was dropped: %+v", s)
	}
}

func TestBaseKeyedAPIReducer_ReceiveAfterInvalidateIsDropped(t *testing.T) {
	reduce := BaseKeyedAPIReducer(EntityTrace, NewSlot())
	late := Action{Kind: KindReceive, Entity: EntityTrace, ID: "t1", Seq: 1, Data: json.RawMessage(`{"properties":{"id":"t1"}}`)}

	for _, inv := range []Action{Invalidate(EntityTrace, "t1"), Invalidate(EntityTrace, "")} {
		k := reduce(Keyed{}, Action{Kind: KindRequest, Entity: EntityTrace, ID: "t1", Seq: 1})
		k = reduce(k, inv)
		k = reduce(k, late)
		if got := k.Get("t1"); got.Fetched || got.Fetching {
			t.Errorf("after %q invalidate, late receive repopulated t1: %+v", inv.ID, got)
		}
	}
}

func TestReceive_DuplicateIsDropped(t *testing.T) {
	reduce := BaseAPIReducer(EntityTraces, NewSlotWith(`[]`))
	s := reduce(NewSlotWith(`[]`), Action{Kind: KindRequest, Entity: EntityTraces, Seq: 3})
	s = reduce(s, Action{Kind: KindReceive, Entity: EntityTraces, Seq: 3, Data: json.RawMessage(`{"page":1}`)})
	s = reduce(s, Action{Kind: KindReceive, Entity: EntityTraces, Seq: 3, Err: errors.New("late")})
	if s.Err != nil || string(s.Data) != `{"page":1}` {
		t.Errorf("second receive for a settled request landed: %+v", s)
	}
}

func TestReceive_DropsStaleSequence(t *testing.T) {
	reduce := BaseAPIReducer(EntityTraces, NewSlotWith(`[]`))

	first := Action{Kind: KindRequest, Entity: EntityTraces, Seq: 1}
	second := Action{Kind: KindRequest, Entity: EntityTraces, Seq: 2}
	s := reduce(reduce(NewSlot(), first), second)

	newer := Action{Kind: KindReceive, Entity: EntityTraces, Seq: 2, Data: json.RawMessage(`{"page":2}`)}
	older := Action{Kind: KindReceive, Entity: EntityTraces, Seq: 1, Data: json.RawMessage(`{"page":1}`)}

	s = reduce(s, newer)
	s = reduce(s, older)
	if string(s.Data) != `{"page":2}` {
		t.Errorf("stale receive overwrote newer data: %s", s.Data)
	}

	// Unsequenced receives always land.
	s = reduce(s, Action{Kind: KindReceive, Entity: EntityTraces, Data: json.RawMessage(`{"page":3}`)})
	if string(s.Data) != `{"page":3}` {
		t.Errorf("unsequenced receive was dropped: %s", s.Data)
	}
}

func TestReduce_UpdateTraceEdits(t *testing.T) {
	s := Initial()
	s = Reduce(s, Receive(EntityTraces, "", json.RawMessage(`{"results":[{"id":"t1","description":"a"},{"id":"t2","description":"b"}],"meta":{"count":2}}`), nil))
	s = Reduce(s, Receive(EntityTrace, "t2", json.RawMessage(`{"type":"Feature","properties":{"id":"t2","description":"b"}}`), nil))

	s = Reduce(s, Update(EntityTrace, "t2", map[string]any{"description": "river walk"}))

	var list struct {
		Results []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"results"`
	}
	if err := json.Unmarshal(s.Traces.Data, &list); err != nil {
		t.Fatal(err)
	}
	if list.Results[0].Description != "a" || list.Results[1].Description != "river walk" {
		t.Errorf("list rows = %+v", list.Results)
	}

	var detail struct {
		Type       string `json:"type"`
		Properties struct {
			Description string `json:"description"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(s.IndividualTraces["t2"].Data, &detail); err != nil {
		t.Fatal(err)
	}
	if detail.Properties.Description != "river walk" || detail.Type != "Feature" {
		t.Errorf("detail = %+v", detail)
	}
}

func TestReduce_UpdateUserRole(t *testing.T) {
	s := Initial()
	s = Reduce(s, Receive(EntityUsers, "", json.RawMessage(`{"results":[{"osmId":123,"isAdmin":false}]}`), nil))
	s = Reduce(s, Update(EntityUsers, "123", map[string]any{"isAdmin": true}))

	var list struct {
		Results []struct {
			IsAdmin bool `json:"isAdmin"`
		} `json:"results"`
	}
	_ = json.Unmarshal(s.Users.Data, &list)
	if len(list.Results) != 1 || !list.Results[0].IsAdmin {
		t.Errorf("users = %s", s.Users.Data)
	}
}

func TestReduce_UpdateIgnoredWhenNotReady(t *testing.T) {
	s := Initial()
	before := s.IndividualPhotos
	s = Reduce(s, Update(EntityPhoto, "p1", map[string]any{"description": "x"}))
	if mapPointer(s.IndividualPhotos) != mapPointer(before) {
		t.Error("update on a missing slot should be a no-op")
	}
}
