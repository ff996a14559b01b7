package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"observe/dashboard/internal/config"
	"observe/dashboard/internal/service"
	"observe/dashboard/testutil"
)

// run executes the root command against the fake Observe API with fresh
// flag values and returns what it printed.
func run(t *testing.T, observe *testutil.ObserveAPI, stdin string, args ...string) (string, error) {
	t.Helper()
	configPath = ""
	outputFormat = "table"
	accessToken = ""
	apiURL = ""
	assumeYes = false
	verbose = false
	traceOutFile = ""
	photoNewDescription = ""

	base := []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--api-url", observe.Server.URL}
	var out bytes.Buffer
	rootCmd.SetArgs(append(base, args...))
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTracesList(t *testing.T) {
	observe := testutil.NewObserveAPI(t)

	tests := []struct {
		name   string
		format string
		want   string
	}{
		{"table", "table", "morning ride"},
		{"yaml", "yaml", "description: evening walk"},
		{"json", "json", `"description": "morning ride"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, observe, "", "traces", "list", "--token", testutil.OwnerToken, "-o", tt.format)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestTracesList_JSONShape(t *testing.T) {
	observe := testutil.NewObserveAPI(t)
	out, err := run(t, observe, "", "traces", "list", "--token", testutil.OwnerToken, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var page struct {
		Results []json.RawMessage `json:"results"`
		Meta    struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(page.Results) != 2 || page.Meta.Count != 2 {
		t.Errorf("page = %+v", page)
	}
}

func TestCommandErrors(t *testing.T) {
	observe := testutil.NewObserveAPI(t)

	if _, err := run(t, observe, "", "traces", "list"); !errors.Is(err, errNoToken) {
		t.Errorf("no token err = %v", err)
	}
	if _, err := run(t, observe, "", "traces", "list", "--token", testutil.OwnerToken, "-o", "xml"); err == nil {
		t.Error("unknown output format accepted")
	}
	if _, err := run(t, observe, "", "traces", "list", "--token", "bogus"); err == nil {
		t.Error("rejected token accepted")
	}
	if _, err := run(t, observe, "", "traces", "show", "t9", "--token", testutil.OwnerToken); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("missing trace err = %v", err)
	}
}

func TestTracesDelete_Confirmation(t *testing.T) {
	observe := testutil.NewObserveAPI(t)

	out, err := run(t, observe, "n\n", "traces", "delete", "t1", "--token", testutil.OwnerToken)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Delete this trace?") {
		t.Errorf("prompt not shown: %q", out)
	}
	if observe.CountCalls("DELETE /traces/t1") != 0 || observe.CountCalls("GET /profile") != 0 {
		t.Error("declined delete reached the API")
	}

	if _, err := run(t, observe, "yes\n", "traces", "delete", "t1", "--token", testutil.OwnerToken); err != nil {
		t.Fatal(err)
	}
	if observe.Trace("t1") != nil {
		t.Error("confirmed delete did not remove the trace")
	}

	out, err = run(t, observe, "", "traces", "delete", "t2", "--yes", "--token", testutil.AdminToken)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "Delete this trace?") || observe.Trace("t2") != nil {
		t.Errorf("--yes did not skip the prompt: %q", out)
	}
}

func TestTracesExport(t *testing.T) {
	observe := testutil.NewObserveAPI(t)

	out, err := run(t, observe, "", "traces", "export", "t2", "--token", testutil.OwnerToken)
	if err != nil {
		t.Fatal(err)
	}
	if out != "<gpx><trk><name>t2</name></trk></gpx>" {
		t.Errorf("stdout = %q", out)
	}

	file := filepath.Join(t.TempDir(), "t1.gpx")
	if _, err := run(t, observe, "", "traces", "export", "t1", "-f", file, "--token", testutil.OwnerToken); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(file)
	if err != nil || !strings.Contains(string(data), "<name>t1</name>") {
		t.Errorf("file = %q, %v", data, err)
	}
}

func TestPhotosEdit(t *testing.T) {
	observe := testutil.NewObserveAPI(t)

	out, err := run(t, observe, "", "photos", "edit", "p1", "-d", "old bench", "--token", testutil.OwnerToken, "-o", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "description: old bench") {
		t.Errorf("output = %s", out)
	}
	if _, err := run(t, observe, "", "photos", "edit", "p2", "-d", "x", "--token", testutil.OwnerToken); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("foreign edit err = %v", err)
	}
}

func TestUsersPromote(t *testing.T) {
	observe := testutil.NewObserveAPI(t)

	if _, err := run(t, observe, "", "users", "promote", "3", "--token", testutil.OwnerToken); !errors.Is(err, service.ErrAdminRequired) {
		t.Fatalf("non admin err = %v", err)
	}
	out, err := run(t, observe, "", "users", "promote", "3", "--token", testutil.AdminToken)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "User 3 is now an admin") || observe.User("3")["isAdmin"] != true {
		t.Errorf("output = %q user = %v", out, observe.User("3"))
	}

	out, err = run(t, observe, "", "users", "list", "--token", testutil.AdminToken, "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"osmDisplayName": "other"`) {
		t.Errorf("users = %s", out)
	}
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		p := &Prompter{}
		var out bytes.Buffer
		got, err := p.Confirm(strings.NewReader(tt.in), &out, "Delete?", "Gone for good.")
		if err != nil || got != tt.want {
			t.Errorf("Confirm(%q) = %v, %v", tt.in, got, err)
		}
		if !strings.HasPrefix(out.String(), "Delete?\nGone for good.") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestNewApp_OwnsPrompter(t *testing.T) {
	assumeYes = false
	a, err := newApp(&config.Config{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := newApp(&config.Config{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if a.prompter == nil || a.prompter == b.prompter {
		t.Fatal("each app must build its own prompter")
	}

	// Answers buffered by one app's prompter stay with that app.
	in := strings.NewReader("y\nn\n")
	var out bytes.Buffer
	first, err := a.confirmDelete(in, &out, "trace", "t1")
	if err != nil || !first {
		t.Fatalf("first answer = %v, %v", first, err)
	}
	second, err := a.confirmDelete(in, &out, "trace", "t1")
	if err != nil || second {
		t.Errorf("second answer = %v, %v", second, err)
	}
	if got, _ := b.confirmDelete(in, &out, "trace", "t1"); got {
		t.Error("another app read answers it was never given")
	}
}
