package state

import (
	"encoding/json"
	"time"
)

type Kind int

const (
	KindRequest Kind = iota + 1
	KindReceive
	KindInvalidate
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "REQUEST"
	case KindReceive:
		return "RECEIVE"
	case KindInvalidate:
		return "INVALIDATE"
	case KindUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Entity tags the resource family an action targets.
type Entity string

const (
	EntityAuthenticatedUser Entity = "AUTHENTICATED_USER"
	EntityTraces            Entity = "TRACES"
	EntityTrace             Entity = "TRACE"
	EntityPhotos            Entity = "PHOTOS"
	EntityPhoto             Entity = "PHOTO"
	EntityUsers             Entity = "USERS"
)

// Action is a tagged union over the four kinds. ID is empty for actions
// that address a whole slot rather than one key of a collection.
type Action struct {
	Kind       Kind
	Entity     Entity
	ID         string
	Data       json.RawMessage
	Err        error
	ReceivedAt time.Time
	Seq        uint64

	// Fields carries a local edit for KindUpdate.
	Fields map[string]any
}

// Type renders the action the way it shows up in logs, e.g. RECEIVE_TRACE.
func (a Action) Type() string {
	return a.Kind.String() + "_" + string(a.Entity)
}

func Request(entity Entity, id string) Action {
	return Action{Kind: KindRequest, Entity: entity, ID: id}
}

func Receive(entity Entity, id string, data json.RawMessage, err error) Action {
	return Action{
		Kind:       KindReceive,
		Entity:     entity,
		ID:         id,
		Data:       data,
		Err:        err,
		ReceivedAt: time.Now(),
	}
}

func Invalidate(entity Entity, id string) Action {
	return Action{Kind: KindInvalidate, Entity: entity, ID: id}
}

func Update(entity Entity, id string, fields map[string]any) Action {
	return Action{Kind: KindUpdate, Entity: entity, ID: id, Fields: fields}
}
