// Package state holds the dashboard's client-side state tree: the API
// slots every list and detail view reads, the actions that move them,
// and the store that serializes those actions.
package state

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Slot is the normalized record of one cached remote resource.
type Slot struct {
	Fetching   bool
	Fetched    bool
	Data       json.RawMessage
	Err        error
	ReceivedAt time.Time

	// Seq is the sequence of the request that currently owns the slot.
	Seq uint64
}

func emptyData() json.RawMessage { return json.RawMessage(`{}`) }

// NewSlot is the default slot: idle, nothing fetched, empty object data.
func NewSlot() Slot {
	return Slot{Data: emptyData()}
}

// NewSlotWith returns an idle slot holding data as its initial value.
func NewSlotWith(data string) Slot {
	return Slot{Data: json.RawMessage(data)}
}

// Keyed maps an entity id to its slot. Values are treated as immutable:
// reducers copy the map before writing.
type Keyed map[string]Slot

// Get returns the slot stored under id, or the default slot. It never
// inserts.
func (k Keyed) Get(id string) Slot {
	if slot, ok := k[id]; ok {
		return slot
	}
	return NewSlot()
}

func (k Keyed) with(id string, slot Slot) Keyed {
	next := make(Keyed, len(k)+1)
	for key, v := range k {
		next[key] = v
	}
	next[id] = slot
	return next
}

// State is the root of the tree.
type State struct {
	AuthenticatedUser Slot
	Traces            Slot
	Photos            Slot
	Users             Slot
	IndividualTraces  Keyed
	IndividualPhotos  Keyed
}

// Initial returns the state a new session starts from.
func Initial() State {
	return State{
		AuthenticatedUser: NewSlotWith(`{"loggedIn":false}`),
		Traces:            NewSlotWith(`[]`),
		Photos:            NewSlotWith(`[]`),
		Users:             NewSlotWith(`[]`),
		IndividualTraces:  Keyed{},
		IndividualPhotos:  Keyed{},
	}
}

// Selector is a path into the state.
type Selector func(State) Slot

func SelectAuthenticatedUser(s State) Slot { return s.AuthenticatedUser }
func SelectTraces(s State) Slot            { return s.Traces }
func SelectPhotos(s State) Slot            { return s.Photos }
func SelectUsers(s State) Slot             { return s.Users }

func SelectTrace(id string) Selector {
	return func(s State) Slot { return s.IndividualTraces.Get(id) }
}

func SelectPhoto(id string) Selector {
	return func(s State) Slot { return s.IndividualPhotos.Get(id) }
}

// Get reads the slot at sel, falling back to the default slot.
func Get(s State, sel Selector) Slot {
	if sel == nil {
		return NewSlot()
	}
	return sel(s)
}

// Session is the credential snapshot derived from the authenticated user
// slot.
type Session struct {
	Authenticated bool
	OsmID         string
	DisplayName   string
	AccessToken   string
	IsAdmin       bool
}

// Session reads the current credentials. A session is authenticated only
// when the profile was fetched without error and carries an osmId.
func (s State) Session() Session {
	slot := s.AuthenticatedUser
	if !slot.Fetched || slot.Fetching || slot.Err != nil {
		return Session{}
	}
	profile := gjson.ParseBytes(slot.Data)
	osmID := profile.Get("osmId")
	if !osmID.Exists() || osmID.String() == "" {
		return Session{}
	}
	return Session{
		Authenticated: true,
		OsmID:         osmID.String(),
		DisplayName:   profile.Get("osmDisplayName").String(),
		AccessToken:   profile.Get("accessToken").String(),
		IsAdmin:       profile.Get("isAdmin").Bool(),
	}
}
