package state

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

var ErrNotReady = errors.New("result not ready")

// Result wraps a slot with the predicates and getters views read. Every
// method is a pure function of the slot and never panics.
type Result struct {
	slot Slot
}

func Wrap(slot Slot) Result {
	return Result{slot: slot}
}

func (r Result) Raw() Slot { return r.slot }

// IsReady reports whether the fetch finished.
func (r Result) IsReady() bool {
	return r.slot.Fetched && !r.slot.Fetching
}

func (r Result) HasError() bool {
	return r.IsReady() && r.slot.Err != nil
}

func (r Result) Err() error {
	if !r.HasError() {
		return nil
	}
	return r.slot.Err
}

// Data returns data.results when present, else data, else def. Before the
// slot is ready it returns def.
func (r Result) Data(def json.RawMessage) json.RawMessage {
	if !r.IsReady() || len(r.slot.Data) == 0 {
		return def
	}
	if results := gjson.GetBytes(r.slot.Data, "results"); truthy(results) {
		return json.RawMessage(results.Raw)
	}
	return r.slot.Data
}

// Meta returns data.meta when ready and present, else def.
func (r Result) Meta(def json.RawMessage) json.RawMessage {
	if !r.IsReady() {
		return def
	}
	meta := gjson.GetBytes(r.slot.Data, "meta")
	if !meta.Exists() {
		return def
	}
	return json.RawMessage(meta.Raw)
}

// Decode unmarshals Data into dst.
func (r Result) Decode(dst any) error {
	if err := r.Err(); err != nil {
		return err
	}
	raw := r.Data(nil)
	if raw == nil {
		return ErrNotReady
	}
	return json.Unmarshal(raw, dst)
}

// DecodeMeta unmarshals Meta into dst. A missing meta leaves dst untouched.
func (r Result) DecodeMeta(dst any) error {
	if err := r.Err(); err != nil {
		return err
	}
	raw := r.Meta(nil)
	if raw == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	}
	return v.Exists()
}
