// Package action holds the fetch-dispatch protocol and the action
// creators built on it.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"observe/dashboard/internal/fetch"
	"observe/dashboard/internal/state"
)

// ErrUnauthenticated is produced locally when no session is present. It
// never reaches the network.
var ErrUnauthenticated = errors.New("not authenticated")

// Fetcher is the remote call wrapper.
type Fetcher interface {
	JSON(ctx context.Context, url string, opts fetch.Options) (json.RawMessage, error)
	Download(ctx context.Context, url string, opts fetch.Options, w io.Writer) (string, error)
}

// Transform reshapes a successful payload before it is stored.
type Transform func(json.RawMessage) (json.RawMessage, error)

func Identity(data json.RawMessage) (json.RawMessage, error) { return data, nil }

// Compose chains transforms left to right.
func Compose(ts ...Transform) Transform {
	return func(data json.RawMessage) (json.RawMessage, error) {
		var err error
		for _, t := range ts {
			if data, err = t(data); err != nil {
				return nil, err
			}
		}
		return data, nil
	}
}

type Options struct {
	URL       string
	Request   fetch.Options
	RequestFn func() state.Action
	ReceiveFn func(data json.RawMessage, err error) state.Action
	Transform Transform

	// Select points at the slot that caches this fetch. Only read by the
	// cache-aware variant.
	Select state.Selector
}

// Command is a mutation that owns no slot of its own.
type Command func(ctx context.Context, d state.Dispatcher) error

// FetchDispatch dispatches the request action, performs the call and
// dispatches exactly one receive action with either the transformed
// payload or the error. It returns the receive action.
func FetchDispatch(f Fetcher, opts Options) state.Thunk {
	transform := opts.Transform
	if transform == nil {
		transform = Identity
	}
	return func(ctx context.Context, d state.Dispatcher) state.Action {
		req := d.Begin(opts.RequestFn())

		data, err := f.JSON(ctx, opts.URL, opts.Request)
		if err == nil {
			if data, err = transform(data); err != nil {
				err = fmt.Errorf("transform %s: %w", opts.URL, err)
			}
		}

		var rec state.Action
		if err != nil {
			rec = opts.ReceiveFn(nil, err)
		} else {
			rec = opts.ReceiveFn(data, nil)
		}
		rec.Seq = req.Seq
		d.Dispatch(rec)
		return rec
	}
}

// FetchDispatchCache answers from the selected slot when it already holds
// a successful result, and fetches otherwise. Errored slots are always
// refetched.
func FetchDispatchCache(f Fetcher, opts Options) state.Thunk {
	return func(ctx context.Context, d state.Dispatcher) state.Action {
		slot := state.Get(d.GetState(), opts.Select)
		if slot.Fetched && slot.Err == nil {
			rec := opts.ReceiveFn(slot.Data, nil)
			d.Dispatch(rec)
			return rec
		}
		return FetchDispatch(f, opts)(ctx, d)
	}
}

// FetchAuth gates a fetch on the current session. Without one it
// dispatches the receive action with ErrUnauthenticated and makes no
// call; otherwise it adds the access token and fetches, through the
// cache when opts.Select is set.
func FetchAuth(f Fetcher, opts Options) state.Thunk {
	return func(ctx context.Context, d state.Dispatcher) state.Action {
		sess := d.GetState().Session()
		if !sess.Authenticated {
			rec := opts.ReceiveFn(nil, ErrUnauthenticated)
			d.Dispatch(rec)
			return rec
		}

		o := opts
		o.Request.Header = withAuthorization(opts.Request.Header, sess.AccessToken)
		if o.Select != nil {
			return FetchDispatchCache(f, o)(ctx, d)
		}
		return FetchDispatch(f, o)(ctx, d)
	}
}

// Mutate performs an authenticated call that does not own a slot.
func Mutate(ctx context.Context, f Fetcher, d state.Dispatcher, url string, req fetch.Options) (json.RawMessage, error) {
	sess := d.GetState().Session()
	if !sess.Authenticated {
		return nil, ErrUnauthenticated
	}
	req.Header = withAuthorization(req.Header, sess.AccessToken)
	return f.JSON(ctx, url, req)
}

// withAuthorization returns a copy of h carrying the access token. Headers
// the caller set take precedence.
func withAuthorization(h http.Header, token string) http.Header {
	merged := http.Header{}
	merged.Set("Authorization", token)
	for k, vs := range h {
		merged[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return merged
}
