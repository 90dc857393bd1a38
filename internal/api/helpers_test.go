package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hyperengineering/farmcost/internal/auth"
	"github.com/hyperengineering/farmcost/internal/metrics"
	"github.com/hyperengineering/farmcost/internal/store"
)

const (
	testAdmin         = "admin"
	testAdminPassword = "admin-password"
	testAPIKey        = "test-secret-key-12345"
)

// testEnv is a router over an in-memory store with an admin account.
type testEnv struct {
	t       *testing.T
	store   *store.SQLStore
	auth    *auth.Service
	metrics *metrics.Metrics
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hasher, err := auth.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	svc, err := auth.NewService(st, auth.NewDBSessions(st, time.Hour), hasher, testAdmin)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if err := svc.AddUser(context.Background(), testAdmin, testAdminPassword); err != nil {
		t.Fatalf("AddUser(admin) error = %v", err)
	}

	m := metrics.New()
	h := NewHandler(st, svc, Options{
		Version:    "test",
		APIKey:     testAPIKey,
		SessionTTL: time.Hour,
		Metrics:    m,
	})

	return &testEnv{t: t, store: st, auth: svc, metrics: m, router: NewRouter(h)}
}

// do sends a request through the router. body may be nil, a string or any
// JSON-encodable value.
func (e *testEnv) do(method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// login returns a request option carrying a session cookie for the user.
func (e *testEnv) login(username, password string) func(*http.Request) {
	e.t.Helper()

	rec := e.do(http.MethodPost, "/login", map[string]string{"username": username, "password": password})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login(%s) status = %d, body = %s", username, rec.Code, rec.Body.String())
	}
	cookie := sessionCookieFrom(e.t, rec)
	return withCookie(cookie)
}

func (e *testEnv) asAdmin() func(*http.Request) {
	return e.login(testAdmin, testAdminPassword)
}

// asUser creates a non-admin account and logs it in.
func (e *testEnv) asUser(username string) func(*http.Request) {
	e.t.Helper()
	if err := e.auth.AddUser(context.Background(), username, "user-password"); err != nil {
		e.t.Fatalf("AddUser(%s) error = %v", username, err)
	}
	return e.login(username, "user-password")
}

func (e *testEnv) insertSurvey(cols map[string]any) {
	e.t.Helper()
	names := make([]string, 0, len(cols))
	for c := range cols {
		names = append(names, c)
	}
	sort.Strings(names)
	vals := make([]any, len(names))
	marks := make([]string, len(names))
	for i, c := range names {
		vals[i] = cols[c]
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO Survey_Standardized (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := e.store.DB().Exec(query, vals...); err != nil {
		e.t.Fatalf("insert survey row: %v", err)
	}
}

func (e *testEnv) countRows(table string) int {
	e.t.Helper()
	var n int
	if err := e.store.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		e.t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", DefaultCookieName)
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}
