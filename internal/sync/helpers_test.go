package sync_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"

	"github.com/nhle/remindly/internal/credential"
	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/netcheck"
	"github.com/nhle/remindly/internal/remote"
	"github.com/nhle/remindly/internal/store"
	"github.com/nhle/remindly/internal/sync"
	"github.com/nhle/remindly/tests/testutil"
)

const (
	testToken = "tok-1"
	testEmail = "ada@example.com"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// call is one request seen by the fake server.
type call struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

func (c call) String() string { return c.Method + " " + c.Path }

// fakeServer imitates the sync server's wire contract and records every
// request in arrival order.
type fakeServer struct {
	t *testing.T

	mu            gosync.Mutex
	calls         []call
	writeStatus   map[string]int // keyed by the id sent in the body
	deleteStatus  map[string]int // keyed by server id
	assignID      func(path, sent string) string
	changes       string
	changesStatus int
	sinces        []string
	rejectStatus  int // answers every request with this status when set

	syncEntered chan struct{}
	syncRelease chan struct{}
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{
		t:            t,
		writeStatus:  map[string]int{},
		deleteStatus: map[string]int{},
		changes:      `{"task_lists":[],"tasks":[],"subtasks":[]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call{Method: r.Method, Path: r.URL.Path, Body: body})
	reject := f.rejectStatus
	f.mu.Unlock()

	if reject != 0 {
		http.Error(w, `{"error":"Invalid token"}`, reject)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/sync":
		f.handleSync(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/delete/"):
		id := strings.TrimPrefix(r.URL.Path, "/delete/")
		f.mu.Lock()
		status, ok := f.deleteStatus[id]
		f.mu.Unlock()
		if !ok {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"success":true}`)
	case r.Method == http.MethodPost || r.Method == http.MethodPut:
		sent, _ := body["id"].(string)
		f.mu.Lock()
		status, ok := f.writeStatus[sent]
		assign := f.assignID
		f.mu.Unlock()
		if ok {
			http.Error(w, `{"error":"boom"}`, status)
			return
		}
		id := sent
		if assign != nil && r.Method == http.MethodPost {
			id = assign(r.URL.Path, sent)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeServer) handleSync(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.sinces = append(f.sinces, r.URL.Query().Get("since"))
	entered, release := f.syncEntered, f.syncRelease
	status, body := f.changesStatus, f.changes
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if status != 0 {
		http.Error(w, "database down", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (f *fakeServer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

func (f *fakeServer) WritesTo(path string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Path == path && (c.Method == http.MethodPost || c.Method == http.MethodPut) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeServer) Sinces() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sinces...)
}

func (f *fakeServer) set(fn func(f *fakeServer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// harness wires a real store, token cache and HTTP client to a fake server.
type harness struct {
	store  *store.SQLiteStore
	tokens *credential.TokenCache
	server *fakeServer
	engine *sync.Engine
	online *onlineSwitch
}

type onlineSwitch struct {
	mu gosync.Mutex
	on bool
}

func (o *onlineSwitch) Online(context.Context) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.on
}

func (o *onlineSwitch) Set(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.on = on
}

var _ netcheck.Oracle = (*onlineSwitch)(nil)

func newHarness(t *testing.T, opts ...sync.EngineOption) *harness {
	t.Helper()

	s := testutil.NewTestStore(t)
	s.SetClock(func() time.Time { return testNow })

	tokens := credential.NewTokenCache(credential.NewVault(keyring.NewArrayKeyring(nil)), 0, nil)
	tokens.SetClock(func() time.Time { return testNow })
	require.NoError(t, tokens.Store(testToken))

	_, err := s.EnsureUser(context.Background(), testEmail)
	require.NoError(t, err)

	fake, srv := newFakeServer(t)
	client := remote.NewClient(srv.URL, tokens.Token,
		remote.WithMaxRetries(0),
		remote.WithRetryInterval(time.Millisecond),
	)

	online := &onlineSwitch{on: true}
	opts = append([]sync.EngineOption{sync.WithClock(func() time.Time { return testNow })}, opts...)
	engine := sync.NewEngine(s, client, tokens, online, opts...)

	return &harness{store: s, tokens: tokens, server: fake, engine: engine, online: online}
}

func (h *harness) createList(t *testing.T, id, name string) model.TaskList {
	t.Helper()
	list, err := h.store.CreateList(context.Background(), model.TaskList{ID: id, Email: testEmail, Name: name})
	require.NoError(t, err)
	return list
}

func (h *harness) createTask(t *testing.T, id, listID string) model.Task {
	t.Helper()
	task, err := h.store.CreateTask(context.Background(), model.Task{
		ID: id, ListID: listID, Name: "Task " + id, Date: testNow.Add(48 * time.Hour).UnixMilli(),
	})
	require.NoError(t, err)
	return task
}

func (h *harness) createSubtask(t *testing.T, id, taskID string) model.Subtask {
	t.Helper()
	sub, err := h.store.CreateSubtask(context.Background(), model.Subtask{ID: id, TaskID: taskID, Name: "Sub " + id})
	require.NoError(t, err)
	return sub
}

// markRemote gives a row a server id and a clean flag, as after a push.
func (h *harness) markRemote(t *testing.T, table model.Table, id, serverID string) {
	t.Helper()
	state, err := h.store.RowSyncState(context.Background(), table, id)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NoError(t, h.store.MarkSynced(context.Background(), table, id, serverID, state.UpdatedAt))
}
