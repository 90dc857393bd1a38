package e2e

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hyperengineering/farmcost/internal/api"
	"github.com/hyperengineering/farmcost/internal/auth"
	"github.com/hyperengineering/farmcost/internal/metrics"
	"github.com/hyperengineering/farmcost/internal/store"
	"github.com/hyperengineering/farmcost/pkg/client"
)

const (
	adminUser     = "admin"
	adminPassword = "admin-password"
	apiKey        = "e2e-api-key"
)

// testServer is a full API stack over a file-backed SQLite database.
type testServer struct {
	t      *testing.T
	store  *store.SQLStore
	srv    *httptest.Server
	dbPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "farmcost.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	hasher, err := auth.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	svc, err := auth.NewService(st, auth.NewDBSessions(st, time.Hour), hasher, adminUser)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.EnsureUser(context.Background(), adminUser, adminPassword); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}

	h := api.NewHandler(st, svc, api.Options{
		Version:    "e2e",
		APIKey:     apiKey,
		SessionTTL: time.Hour,
		Metrics:    metrics.New(),
	})
	srv := httptest.NewServer(api.NewRouter(h))

	t.Cleanup(func() {
		srv.Close()
		st.Close()
	})
	return &testServer{t: t, store: st, srv: srv, dbPath: dbPath}
}

// client returns an unauthenticated client for the server.
func (s *testServer) client(opts ...client.Option) *client.Client {
	s.t.Helper()
	c, err := client.New(s.srv.URL, opts...)
	if err != nil {
		s.t.Fatalf("client.New: %v", err)
	}
	return c
}

// adminClient returns a client logged in as the administrator.
func (s *testServer) adminClient() *client.Client {
	s.t.Helper()
	c := s.client()
	if err := c.Login(context.Background(), adminUser, adminPassword); err != nil {
		s.t.Fatalf("admin login: %v", err)
	}
	return c
}

// seedSurvey inserts survey rows, one map of column values per row.
func (s *testServer) seedSurvey(rows ...map[string]any) {
	s.t.Helper()
	for _, row := range rows {
		cols := make([]string, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		vals := make([]any, len(cols))
		marks := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = row[c]
			marks[i] = "?"
		}
		query := fmt.Sprintf("INSERT INTO Survey_Standardized (%s) VALUES (%s)",
			strings.Join(cols, ", "), strings.Join(marks, ", "))
		if _, err := s.store.DB().Exec(query, vals...); err != nil {
			s.t.Fatalf("seed survey: %v", err)
		}
	}
}
