package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"observe/dashboard/internal/fetch"
	"observe/dashboard/internal/state"
)

var ErrNoPhotoURL = errors.New("photo has no full-size url")

// DefaultJOSMURL is JOSM's local remote-control endpoint.
const DefaultJOSMURL = "http://127.0.0.1:8111"

// API builds thunks and commands against one Observe API.
type API struct {
	baseURL string
	josmURL string
	fetcher Fetcher
}

func NewAPI(baseURL string, fetcher Fetcher) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		josmURL: DefaultJOSMURL,
		fetcher: fetcher,
	}
}

// WithJOSM overrides the JOSM remote-control address.
func (a *API) WithJOSM(josmURL string) *API {
	if josmURL != "" {
		a.josmURL = strings.TrimRight(josmURL, "/")
	}
	return a
}

func (a *API) BaseURL() string { return a.baseURL }

func (a *API) url(path string, q url.Values) string {
	return withQuery(a.baseURL+path, q)
}

func receiver(entity state.Entity, id string) func(json.RawMessage, error) state.Action {
	return func(data json.RawMessage, err error) state.Action {
		return state.Receive(entity, id, data, err)
	}
}

func requester(entity state.Entity, id string) func() state.Action {
	return func() state.Action { return state.Request(entity, id) }
}

// WithAccessToken stores the token alongside the profile so later requests
// can read it from the session snapshot.
func WithAccessToken(token string) Transform {
	return func(data json.RawMessage) (json.RawMessage, error) {
		out, err := sjson.SetBytes(data, "accessToken", token)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(out), nil
	}
}

// Authenticate loads the profile that owns accessToken.
func (a *API) Authenticate(accessToken string) state.Thunk {
	return FetchDispatch(a.fetcher, Options{
		URL: a.url("/profile", nil),
		Request: fetch.Options{
			Header: http.Header{"Authorization": {accessToken}},
		},
		RequestFn: requester(state.EntityAuthenticatedUser, ""),
		ReceiveFn: receiver(state.EntityAuthenticatedUser, ""),
		Transform: WithAccessToken(accessToken),
	})
}

// RefreshProfile reloads the profile without a request phase, so the
// session stays readable while the call is in flight. A rejected token
// logs the session out.
func (a *API) RefreshProfile() Command {
	return func(ctx context.Context, d state.Dispatcher) error {
		sess := d.GetState().Session()
		if !sess.Authenticated {
			return ErrUnauthenticated
		}
		data, err := a.fetcher.JSON(ctx, a.url("/profile", nil), fetch.Options{
			Header: http.Header{"Authorization": {sess.AccessToken}},
		})
		if err != nil {
			if code := fetch.StatusCode(err); code == http.StatusUnauthorized || code == http.StatusForbidden {
				d.Dispatch(Logout())
			}
			return fmt.Errorf("refresh profile: %w", err)
		}
		if data, err = WithAccessToken(sess.AccessToken)(data); err != nil {
			return fmt.Errorf("refresh profile: %w", err)
		}
		d.Dispatch(state.Receive(state.EntityAuthenticatedUser, "", data, nil))
		return nil
	}
}

func Logout() state.Action {
	return state.Invalidate(state.EntityAuthenticatedUser, "")
}

/*
 * Traces
 */

func (a *API) FetchTraces(q TraceQuery) state.Thunk {
	return FetchAuth(a.fetcher, Options{
		URL:       a.url("/traces", q.Values()),
		RequestFn: requester(state.EntityTraces, ""),
		ReceiveFn: receiver(state.EntityTraces, ""),
	})
}

// FetchTrace loads one trace. With cached set, a previously fetched trace
// is served from the store.
func (a *API) FetchTrace(id string, cached bool) state.Thunk {
	opts := Options{
		URL:       a.url("/traces/"+url.PathEscape(id), nil),
		RequestFn: requester(state.EntityTrace, id),
		ReceiveFn: receiver(state.EntityTrace, id),
	}
	if cached {
		opts.Select = state.SelectTrace(id)
	}
	return FetchAuth(a.fetcher, opts)
}

func (a *API) UpdateTrace(id string, fields map[string]any) Command {
	return a.patch("/traces/"+url.PathEscape(id), fields, state.Update(state.EntityTrace, id, fields))
}

func (a *API) DeleteTrace(id string) Command {
	return a.delete("/traces/"+url.PathEscape(id),
		state.Invalidate(state.EntityTrace, id),
		state.Invalidate(state.EntityTraces, ""),
	)
}

func InvalidateTraces() state.Action { return state.Invalidate(state.EntityTraces, "") }

func InvalidateTrace(id string) state.Action { return state.Invalidate(state.EntityTrace, id) }

func InvalidatePhotos() state.Action { return state.Invalidate(state.EntityPhotos, "") }

func InvalidatePhoto(id string) state.Action { return state.Invalidate(state.EntityPhoto, id) }

func InvalidateUsers() state.Action { return state.Invalidate(state.EntityUsers, "") }

func (a *API) TraceGPXURL(id string) string {
	return a.url("/traces/"+url.PathEscape(id)+".gpx", nil)
}

// JOSMImportURL is the remote-control link that makes a running JOSM
// import the trace's GPX export.
func (a *API) JOSMImportURL(id string) string {
	return a.josmURL + "/import?" + url.Values{"url": {a.TraceGPXURL(id)}}.Encode()
}

// DownloadGPX streams the trace's GPX export into w.
func (a *API) DownloadGPX(ctx context.Context, d state.Dispatcher, id string, w io.Writer) error {
	sess := d.GetState().Session()
	if !sess.Authenticated {
		return ErrUnauthenticated
	}
	_, err := a.fetcher.Download(ctx, a.TraceGPXURL(id), fetch.Options{
		Header: withAuthorization(nil, sess.AccessToken),
	}, w)
	return err
}

/*
 * Photos
 */

func (a *API) FetchPhotos(q PhotoQuery) state.Thunk {
	return FetchAuth(a.fetcher, Options{
		URL:       a.url("/photos", q.Values()),
		RequestFn: requester(state.EntityPhotos, ""),
		ReceiveFn: receiver(state.EntityPhotos, ""),
	})
}

func (a *API) FetchPhoto(id string, cached bool) state.Thunk {
	opts := Options{
		URL:       a.url("/photos/"+url.PathEscape(id), nil),
		RequestFn: requester(state.EntityPhoto, id),
		ReceiveFn: receiver(state.EntityPhoto, id),
	}
	if cached {
		opts.Select = state.SelectPhoto(id)
	}
	return FetchAuth(a.fetcher, opts)
}

// DownloadPhoto streams the full-size image of a photo into w and returns
// the file name it was published under.
func (a *API) DownloadPhoto(ctx context.Context, d state.Dispatcher, id string, w io.Writer) (string, error) {
	rec := a.FetchPhoto(id, true)(ctx, d)
	if rec.Err != nil {
		return "", rec.Err
	}
	full := gjson.GetBytes(rec.Data, "urls.full").String()
	if full == "" {
		return "", ErrNoPhotoURL
	}
	if _, err := a.fetcher.Download(ctx, full, fetch.Options{}, w); err != nil {
		return "", err
	}
	name := full
	if i := strings.LastIndex(full, "/"); i >= 0 {
		name = full[i+1:]
	}
	return name, nil
}

func (a *API) UpdatePhoto(id string, fields map[string]any) Command {
	return a.patch("/photos/"+url.PathEscape(id), fields, state.Update(state.EntityPhoto, id, fields))
}

func (a *API) DeletePhoto(id string) Command {
	return a.delete("/photos/"+url.PathEscape(id),
		state.Invalidate(state.EntityPhoto, id),
		state.Invalidate(state.EntityPhotos, ""),
	)
}

/*
 * Users
 */

func (a *API) FetchUsers(q UserQuery) state.Thunk {
	return FetchAuth(a.fetcher, Options{
		URL:       a.url("/users", q.Values()),
		RequestFn: requester(state.EntityUsers, ""),
		ReceiveFn: receiver(state.EntityUsers, ""),
	})
}

// SetUserRole promotes or demotes a user.
func (a *API) SetUserRole(osmID string, isAdmin bool) Command {
	fields := map[string]any{"isAdmin": isAdmin}
	return a.patch("/users/"+url.PathEscape(osmID), fields, state.Update(state.EntityUsers, osmID, fields))
}

func (a *API) patch(path string, fields map[string]any, onSuccess state.Action) Command {
	return func(ctx context.Context, d state.Dispatcher) error {
		_, err := Mutate(ctx, a.fetcher, d, a.url(path, nil), fetch.Options{
			Method: http.MethodPatch,
			Body:   fields,
		})
		if err != nil {
			return err
		}
		d.Dispatch(onSuccess)
		return nil
	}
}

func (a *API) delete(path string, onSuccess ...state.Action) Command {
	return func(ctx context.Context, d state.Dispatcher) error {
		_, err := Mutate(ctx, a.fetcher, d, a.url(path, nil), fetch.Options{
			Method: http.MethodDelete,
		})
		if err != nil {
			return err
		}
		for _, act := range onSuccess {
			d.Dispatch(act)
		}
		return nil
	}
}
