package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/legionews/legio/auth"
	"github.com/legionews/legio/store"
	"github.com/legionews/legio/wpmap"
	"github.com/legionews/legio/wpsync"
)

// Reference phpass portable hash for "test12345".
const (
	portableHash     = "$P$9IQRaTwmfeRo7ud9Fh4E2PdI0S3r.L0"
	portablePassword = "test12345"
)

var testSecret = bytes.Repeat([]byte("k"), auth.MinSecretLen)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := store.OpenMemory(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, testSecret, wpsync.Config{FullReplace: true}, logger), st
}

func seedUser(t *testing.T, st *store.Store, u store.User) {
	t.Helper()
	if u.CreatedAt == "" {
		u.CreatedAt = "2021-01-01 00:00:00"
	}
	if err := st.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, id int64, username, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, &auth.Claims{UserID: id, Username: username, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func TestLogin_LegacyHashUpgraded(t *testing.T) {
	// WHAT: a phpass credential logs in and is silently rewritten to
	// bcrypt, so the next login takes the bcrypt path.
	srv, st := newTestServer(t)
	router := srv.Router()
	seedUser(t, st, store.User{ID: 1, Username: "ivan", Name: "Ivan", Role: "user", Password: portableHash, Points: 100, Level: 1})

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "ivan", Password: portablePassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Token string      `json:"token"`
		User  userPayload `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("response has no token")
	}
	if resp.User.Username != "ivan" || resp.User.Points != 100 {
		t.Errorf("user payload = %+v", resp.User)
	}

	claims, err := auth.ValidateToken(testSecret, resp.Token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.UserID != 1 || claims.Role != "user" {
		t.Errorf("claims = %+v", claims)
	}

	account, err := st.AccountByUsername(context.Background(), "ivan")
	if err != nil {
		t.Fatalf("account lookup: %v", err)
	}
	if !strings.HasPrefix(account.Password, "$2a$") {
		t.Errorf("password not upgraded to bcrypt: %q", account.Password)
	}

	// Same password still works against the upgraded hash.
	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "ivan", Password: portablePassword})
	if rec.Code != http.StatusOK {
		t.Errorf("second login status = %d", rec.Code)
	}
	upgraded, err := st.AccountByUsername(context.Background(), "ivan")
	if err != nil {
		t.Fatalf("account lookup: %v", err)
	}
	if upgraded.Password != account.Password {
		t.Error("bcrypt hash rewritten on second login")
	}
}

func TestLogin_Failures(t *testing.T) {
	srv, st := newTestServer(t)
	router := srv.Router()
	seedUser(t, st, store.User{ID: 1, Username: "ivan", Name: "Ivan", Role: "user", Password: portableHash})

	cases := []struct {
		name   string
		body   any
		status int
	}{
		{"wrong password", loginRequest{Username: "ivan", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", loginRequest{Username: "ghost", Password: "x"}, http.StatusUnauthorized},
		{"empty fields", loginRequest{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", tc.body)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}

	// Malformed JSON body.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestResolvePoll_Endpoint(t *testing.T) {
	srv, st := newTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	seedUser(t, st, store.User{ID: 1, Username: "voter", Name: "Voter", Role: "user", Points: 100, Level: 1})
	if err := st.UpsertNews(ctx, store.News{ID: 10, Title: "n", Category: "general", CreatedAt: "2021-01-01 00:00:00"}); err != nil {
		t.Fatalf("seed news: %v", err)
	}
	if err := st.UpsertPoll(ctx, 10, "Q?"); err != nil {
		t.Fatalf("seed poll: %v", err)
	}
	counterMap, err := st.ReplacePollOptions(ctx, 10, []wpmap.PollOption{{Counter: 1, Text: "a"}})
	if err != nil {
		t.Fatalf("seed options: %v", err)
	}
	if err := st.InsertVote(ctx, store.Vote{UserID: 1, PollID: 10, OptionID: counterMap[1], CreatedAt: "2021-01-01 00:00:00"}); err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	creator := tokenFor(t, 2, "editor", auth.RoleCreator)
	body := resolveRequest{CorrectOptionID: counterMap[1]}

	// No token and plain-user token are both rejected before the handler.
	if rec := doJSON(t, router, http.MethodPost, "/api/polls/10/resolve", "", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	user := tokenFor(t, 1, "voter", auth.RoleUser)
	if rec := doJSON(t, router, http.MethodPost, "/api/polls/10/resolve", user, body); rec.Code != http.StatusForbidden {
		t.Errorf("user status = %d, want 403", rec.Code)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/polls/10/resolve", creator, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("creator status = %d, body %s", rec.Code, rec.Body)
	}
	var result store.ResolveResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Winners != 1 || result.TotalVotes != 1 {
		t.Errorf("result = %+v", result)
	}

	// Second resolution conflicts.
	if rec := doJSON(t, router, http.MethodPost, "/api/polls/10/resolve", creator, body); rec.Code != http.StatusConflict {
		t.Errorf("repeat status = %d, want 409", rec.Code)
	}
	// Unknown poll.
	if rec := doJSON(t, router, http.MethodPost, "/api/polls/999/resolve", creator, body); rec.Code != http.StatusNotFound {
		t.Errorf("unknown poll status = %d, want 404", rec.Code)
	}
	// Missing option id.
	if rec := doJSON(t, router, http.MethodPost, "/api/polls/10/resolve", creator, resolveRequest{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing option status = %d, want 400", rec.Code)
	}
}

func TestSyncEndpoint_Gating(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	if rec := doJSON(t, router, http.MethodPost, "/api/admin/sync", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
	creator := tokenFor(t, 1, "editor", auth.RoleCreator)
	if rec := doJSON(t, router, http.MethodPost, "/api/admin/sync", creator, nil); rec.Code != http.StatusForbidden {
		t.Errorf("creator status = %d, want 403", rec.Code)
	}

	admin := tokenFor(t, 1, "root", auth.RoleAdmin)

	// Bad fullReplace value fails fast.
	if rec := doJSON(t, router, http.MethodPost, "/api/admin/sync?fullReplace=maybe", admin, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad fullReplace status = %d, want 400", rec.Code)
	}

	// The test server has no WP_DB_* configuration, so the run must fail
	// with 400 before touching any database.
	rec := doJSON(t, router, http.MethodPost, "/api/admin/sync", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unconfigured sync status = %d, want 400, body %s", rec.Code, rec.Body)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
	if resp["wpSyncEnabled"] != false {
		t.Errorf("wpSyncEnabled = %v, want false", resp["wpSyncEnabled"])
	}
}
