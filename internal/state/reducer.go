package state

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// transition applies one request/receive/invalidate step to a slot. The
// boolean reports whether the slot changed.
func transition(slot Slot, a Action, initial Slot) (Slot, bool) {
	switch a.Kind {
	case KindInvalidate:
		// The sequence floor survives so that a receive for a request
		// issued before the reset cannot repopulate the slot.
		next := initial
		next.Seq = slot.Seq
		return next, true

	case KindRequest:
		return Slot{
			Fetching: true,
			Fetched:  false,
			Data:     emptyData(),
			Err:      nil,
			Seq:      max(slot.Seq, a.Seq),
		}, true

	case KindReceive:
		// A receive is stale when a newer request owns the slot, or when
		// its own request was already settled or invalidated.
		if a.Seq != 0 && (a.Seq < slot.Seq || (a.Seq == slot.Seq && !slot.Fetching)) {
			return slot, false
		}
		next := Slot{
			Fetching:   false,
			Fetched:    true,
			ReceivedAt: a.ReceivedAt,
			Data:       emptyData(),
			Seq:        slot.Seq,
		}
		if a.Err != nil {
			next.Err = a.Err
		} else if a.Data != nil {
			next.Data = a.Data
		}
		return next, true
	}
	return slot, false
}

// BaseAPIReducer builds the reducer for a singleton slot of entity.
// Actions carrying an ID address a keyed collection and are ignored.
func BaseAPIReducer(entity Entity, initial Slot) func(Slot, Action) Slot {
	return func(slot Slot, a Action) Slot {
		if a.Entity != entity || a.ID != "" {
			return slot
		}
		next, _ := transition(slot, a, initial)
		return next
	}
}

// BaseKeyedAPIReducer builds the reducer for a collection of per-id slots.
// Only the key named by the action is touched; invalidating without an id
// resets every key.
func BaseKeyedAPIReducer(entity Entity, initial Slot) func(Keyed, Action) Keyed {
	return func(k Keyed, a Action) Keyed {
		if a.Entity != entity {
			return k
		}
		if a.ID == "" {
			if a.Kind == KindInvalidate {
				return invalidateAll(k, a, initial)
			}
			return k
		}
		next, changed := transition(k.Get(a.ID), a, initial)
		if !changed {
			return k
		}
		return k.with(a.ID, next)
	}
}

func invalidateAll(k Keyed, a Action, initial Slot) Keyed {
	if len(k) == 0 {
		return k
	}
	next := make(Keyed, len(k))
	for id, slot := range k {
		next[id], _ = transition(slot, a, initial)
	}
	return next
}

var (
	authenticatedUserBase = BaseAPIReducer(EntityAuthenticatedUser, NewSlotWith(`{"loggedIn":false}`))
	tracesBase            = BaseAPIReducer(EntityTraces, NewSlotWith(`[]`))
	photosBase            = BaseAPIReducer(EntityPhotos, NewSlotWith(`[]`))
	usersBase             = BaseAPIReducer(EntityUsers, NewSlotWith(`[]`))
	individualTracesBase  = BaseKeyedAPIReducer(EntityTrace, NewSlot())
	individualPhotosBase  = BaseKeyedAPIReducer(EntityPhoto, NewSlot())
)

func reduceTraces(s Slot, a Action) Slot {
	if a.Kind == KindUpdate && a.Entity == EntityTrace {
		return patchListRow(s, "id", a.ID, a.Fields)
	}
	return tracesBase(s, a)
}

// Trace details are GeoJSON features; editable fields live in properties.
func reduceIndividualTraces(k Keyed, a Action) Keyed {
	if a.Kind == KindUpdate && a.Entity == EntityTrace {
		return patchKeyed(k, a.ID, "properties", a.Fields)
	}
	return individualTracesBase(k, a)
}

func reducePhotos(s Slot, a Action) Slot {
	if a.Kind == KindUpdate && a.Entity == EntityPhoto {
		return patchListRow(s, "id", a.ID, a.Fields)
	}
	return photosBase(s, a)
}

func reduceIndividualPhotos(k Keyed, a Action) Keyed {
	if a.Kind == KindUpdate && a.Entity == EntityPhoto {
		return patchKeyed(k, a.ID, "", a.Fields)
	}
	return individualPhotosBase(k, a)
}

// Users are keyed by osmId inside the list; role changes patch the row.
func reduceUsers(s Slot, a Action) Slot {
	if a.Kind == KindUpdate && a.Entity == EntityUsers {
		return patchListRow(s, "osmId", a.ID, a.Fields)
	}
	return usersBase(s, a)
}

// Reduce is the root reducer.
func Reduce(s State, a Action) State {
	s.AuthenticatedUser = authenticatedUserBase(s.AuthenticatedUser, a)
	s.Traces = reduceTraces(s.Traces, a)
	s.Photos = reducePhotos(s.Photos, a)
	s.Users = reduceUsers(s.Users, a)
	s.IndividualTraces = reduceIndividualTraces(s.IndividualTraces, a)
	s.IndividualPhotos = reduceIndividualPhotos(s.IndividualPhotos, a)
	return s
}

func patchKeyed(k Keyed, id, prefix string, fields map[string]any) Keyed {
	slot, ok := k[id]
	if !ok || !slot.Fetched || slot.Err != nil || len(fields) == 0 {
		return k
	}
	slot.Data = patchFields(slot.Data, prefix, fields)
	return k.with(id, slot)
}

func patchListRow(slot Slot, idField, id string, fields map[string]any) Slot {
	if !slot.Fetched || slot.Err != nil || len(fields) == 0 {
		return slot
	}
	idx := -1
	gjson.GetBytes(slot.Data, "results").ForEach(func(key, row gjson.Result) bool {
		if row.Get(idField).String() == id {
			idx = int(key.Int())
			return false
		}
		return true
	})
	if idx < 0 {
		return slot
	}
	slot.Data = patchFields(slot.Data, "results."+strconv.Itoa(idx), fields)
	return slot
}

func patchFields(data json.RawMessage, prefix string, fields map[string]any) json.RawMessage {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte(data)
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		next, err := sjson.SetBytes(out, path, fields[k])
		if err != nil {
			continue
		}
		out = next
	}
	return json.RawMessage(out)
}
