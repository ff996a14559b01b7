package action

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"observe/dashboard/internal/fetch"
	"observe/dashboard/internal/state"
)

func TestTraceQuery_Values(t *testing.T) {
	q := TraceQuery{
		Page:      Page{Page: 2, Limit: 20, Sort: Sort{"recordedAt": SortDesc, "length": SortAsc}},
		Username:  "mapper",
		StartDate: "2019-01-01",
		LengthMax: 5000,
	}
	got, _ := url.QueryUnescape(q.Values().Encode())
	for _, part := range []string{
		"page=2", "limit=20", "sort[length]=asc", "sort[recordedAt]=desc",
		"username=mapper", "startDate=2019-01-01", "lengthMax=5000",
	} {
		if !strings.Contains(got, part) {
			t.Errorf("%q missing %q", got, part)
		}
	}
	for _, absent := range []string{"endDate", "lengthMin"} {
		if strings.Contains(got, absent) {
			t.Errorf("%q should omit %q", got, absent)
		}
	}
}

func TestPhotoQuery_Values(t *testing.T) {
	q := PhotoQuery{OsmElementType: "node", OsmElementID: "42"}
	if got := q.Values().Encode(); got != "osmElementId=42&osmElementType=node" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestParsePage(t *testing.T) {
	v, _ := url.ParseQuery("page=3&limit=10&sort[createdAt]=asc&username=x")
	p, err := ParsePage(v)
	if err != nil {
		t.Fatal(err)
	}
	if p.Page != 3 || p.Limit != 10 || p.Sort["createdAt"] != SortAsc || len(p.Sort) != 1 {
		t.Errorf("ParsePage() = %+v", p)
	}

	for _, bad := range []string{"page=0", "limit=x", "sort[a]=up"} {
		v, _ := url.ParseQuery(bad)
		if _, err := ParsePage(v); err == nil {
			t.Errorf("ParsePage(%q) expected error", bad)
		}
	}
}

func TestParseSortFlag(t *testing.T) {
	s, err := ParseSortFlag([]string{"length:DESC", "recordedAt:asc"})
	if err != nil {
		t.Fatal(err)
	}
	if s["length"] != SortDesc || s["recordedAt"] != SortAsc {
		t.Errorf("ParseSortFlag() = %v", s)
	}
	if _, err := ParseSortFlag([]string{"length"}); err == nil {
		t.Error("expected error for missing direction")
	}
}

func TestAuthenticate_StoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile" || r.Header.Get("Authorization") != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"osmId":7,"osmDisplayName":"mapper","isAdmin":false}`))
	}))
	defer srv.Close()

	store := state.NewStore(state.Initial(), nil)
	api := NewAPI(srv.URL+"/", fetch.NewClient(srv.Client(), nil))
	store.Run(context.Background(), api.Authenticate("abc"))

	sess := store.GetState().Session()
	if !sess.Authenticated || sess.AccessToken != "abc" || sess.OsmID != "7" {
		t.Errorf("session = %+v", sess)
	}

	store.Dispatch(Logout())
	if store.GetState().Session().Authenticated {
		t.Error("logout kept the session")
	}

	rec := store.Run(context.Background(), api.Authenticate("wrong"))
	if fetch.StatusCode(rec.Err) != http.StatusUnauthorized {
		t.Errorf("Err = %v", rec.Err)
	}
}

func TestRefreshProfile(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		w.WriteHeader(code)
		if code != http.StatusOK {
			_, _ = w.Write([]byte(`{"message":"expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"osmId":"100","isAdmin":false}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, fetch.NewClient(srv.Client(), nil))
	store := loggedIn("tok")

	rec := &recorder{Dispatcher: store}
	if err := api.RefreshProfile()(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if types := rec.types(); len(types) != 1 || types[0] != "RECEIVE_AUTHENTICATED_USER" {
		t.Errorf("dispatched %v", types)
	}
	sess := store.GetState().Session()
	if sess.IsAdmin || sess.AccessToken != "tok" {
		t.Errorf("session = %+v", sess)
	}

	status.Store(http.StatusInternalServerError)
	if err := api.RefreshProfile()(context.Background(), store); err == nil {
		t.Error("expected error")
	}
	if !store.GetState().Session().Authenticated {
		t.Error("server error should not log out")
	}

	status.Store(http.StatusUnauthorized)
	_ = api.RefreshProfile()(context.Background(), store)
	if store.GetState().Session().Authenticated {
		t.Error("401 should log out")
	}

	if err := api.RefreshProfile()(context.Background(), store); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v", err)
	}
}

func TestUpdateAndDeleteTrace(t *testing.T) {
	var lastMethod, lastPath string
	var lastBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastMethod, lastPath = r.Method, r.URL.Path
		lastBody = nil
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/traces/t1":
			_, _ = w.Write([]byte(`{"type":"Feature","properties":{"id":"t1","description":"old"}}`))
		case r.URL.Path == "/traces/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"trace not found"}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, fetch.NewClient(srv.Client(), nil))
	store := loggedIn("tok")
	ctx := context.Background()

	store.Run(ctx, api.FetchTrace("t1", true))
	if err := api.UpdateTrace("t1", map[string]any{"description": "new"})(ctx, store); err != nil {
		t.Fatal(err)
	}
	if lastMethod != http.MethodPatch || lastBody["description"] != "new" {
		t.Errorf("request = %s %v", lastMethod, lastBody)
	}
	if !strings.Contains(string(store.GetState().IndividualTraces["t1"].Data), `"description":"new"`) {
		t.Errorf("local edit not merged: %s", store.GetState().IndividualTraces["t1"].Data)
	}

	if err := api.DeleteTrace("t1")(ctx, store); err != nil {
		t.Fatal(err)
	}
	if lastMethod != http.MethodDelete || lastPath != "/traces/t1" {
		t.Errorf("request = %s %s", lastMethod, lastPath)
	}
	if store.GetState().IndividualTraces["t1"].Fetched {
		t.Error("deleted trace still cached")
	}

	err := api.DeleteTrace("missing")(ctx, store)
	if fetch.StatusCode(err) != http.StatusNotFound || err.Error() != "trace not found" {
		t.Errorf("err = %v", err)
	}

	anon := state.NewStore(state.Initial(), nil)
	if err := api.DeleteTrace("t1")(ctx, anon); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v", err)
	}
}

func TestSetUserRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"results":[{"osmId":"5","isAdmin":false}],"meta":{"count":1}}`))
			return
		}
		if r.URL.Path != "/users/5" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, fetch.NewClient(srv.Client(), nil))
	store := loggedIn("tok")
	ctx := context.Background()
	store.Run(ctx, api.FetchUsers(UserQuery{Username: "x"}))

	if err := api.SetUserRole("5", true)(ctx, store); err != nil {
		t.Fatal(err)
	}
	var users []struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := state.Wrap(store.GetState().Users).Decode(&users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || !users[0].IsAdmin {
		t.Errorf("users = %+v", users)
	}
}

func TestExportLinksAndDownloads(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/traces/t1.gpx":
			if r.Header.Get("Authorization") != "tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, "<gpx/>")
		case "/photos/p1":
			_, _ = io.WriteString(w, `{"id":"p1","urls":{"full":"`+srvURL+`/media/p1-full.jpg"}}`)
		case "/media/p1-full.jpg":
			_, _ = io.WriteString(w, "jpeg")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	api := NewAPI(srv.URL, fetch.NewClient(srv.Client(), nil)).WithJOSM("http://localhost:8111/")
	store := loggedIn("tok")
	ctx := context.Background()

	wantJOSM := "http://localhost:8111/import?url=" + url.QueryEscape(srv.URL+"/traces/t1.gpx")
	if got := api.JOSMImportURL("t1"); got != wantJOSM {
		t.Errorf("JOSMImportURL() = %q, want %q", got, wantJOSM)
	}

	var gpx bytes.Buffer
	if err := api.DownloadGPX(ctx, store, "t1", &gpx); err != nil || gpx.String() != "<gpx/>" {
		t.Errorf("DownloadGPX() = %q, %v", gpx.String(), err)
	}

	var img bytes.Buffer
	name, err := api.DownloadPhoto(ctx, store, "p1", &img)
	if err != nil || name != "p1-full.jpg" || img.String() != "jpeg" {
		t.Errorf("DownloadPhoto() = %q %q %v", name, img.String(), err)
	}
}
