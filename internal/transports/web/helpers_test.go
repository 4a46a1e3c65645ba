package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coffeeshop/internal/auth/authtest"
	"coffeeshop/internal/core"
	"coffeeshop/internal/modules/drinks"
	"coffeeshop/internal/modules/host"
	"coffeeshop/internal/storage"
	"coffeeshop/internal/storage/sqlite"
)

// countingStore считает обращения к таблице напитков и позволяет подменить ListDrinks.
type countingStore struct {
	*sqlite.Store
	drinkCalls int32
	listHook   func(ctx context.Context) error
}

func (s *countingStore) ListDrinks(ctx context.Context) ([]core.Drink, error) {
	atomic.AddInt32(&s.drinkCalls, 1)
	if s.listHook != nil {
		if err := s.listHook(ctx); err != nil {
			return nil, err
		}
	}
	return s.Store.ListDrinks(ctx)
}

func (s *countingStore) GetDrink(ctx context.Context, id int64) (core.Drink, error) {
	atomic.AddInt32(&s.drinkCalls, 1)
	return s.Store.GetDrink(ctx, id)
}

func (s *countingStore) CreateDrink(ctx context.Context, d core.Drink) (core.Drink, error) {
	atomic.AddInt32(&s.drinkCalls, 1)
	return s.Store.CreateDrink(ctx, d)
}

func (s *countingStore) UpdateDrink(ctx context.Context, id int64, apply func(*core.Drink) error) (core.Drink, error) {
	atomic.AddInt32(&s.drinkCalls, 1)
	return s.Store.UpdateDrink(ctx, id, apply)
}

func (s *countingStore) DeleteDrink(ctx context.Context, id int64) error {
	atomic.AddInt32(&s.drinkCalls, 1)
	return s.Store.DeleteDrink(ctx, id)
}

func (s *countingStore) calls() int32 { return atomic.LoadInt32(&s.drinkCalls) }

type fakeProbe struct{}

func (fakeProbe) Status(ctx context.Context) (host.Status, error) {
	return host.Status{Hostname: "bar-01", MemUsedPct: 12.5}, nil
}

// syncBuffer собирает вывод логгера из обработчиков.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	t       *testing.T
	logs    *syncBuffer
	store   *countingStore
	issuer  *authtest.TokenIssuer
	adapter *Adapter
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	store := &countingStore{Store: st}
	issuer := authtest.NewIssuer(t)
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	adapter := NewAdapter(drinks.NewService(store), issuer.Verifier(t), core.NewClaimsAuthorizer(), store, fakeProbe{}, logger, cfg)
	return &testEnv{t: t, logs: logs, store: store, issuer: issuer, adapter: adapter, handler: adapter.routes()}
}

// managerToken выпускает токен со всеми разрешениями.
func (e *testEnv) managerToken() string {
	return e.issuer.Token(e.t, "auth0|manager",
		string(core.PermGetDrinks),
		string(core.PermGetDrinksDetail),
		string(core.PermPostDrinks),
		string(core.PermPatchDrinks),
		string(core.PermDeleteDrinks),
	)
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) auditEvents() []storage.AuditEvent {
	e.t.Helper()
	events, err := e.store.QueryAudit(context.Background(), storage.AuditQuery{To: time.Now().Add(time.Minute)})
	if err != nil {
		e.t.Fatalf("query audit: %v", err)
	}
	return events
}

type envelope struct {
	Success bool            `json:"success"`
	Error   int             `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Drinks  json.RawMessage `json:"drinks"`
	Delete  int64           `json:"delete"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return env
}

func assertErrorEnvelope(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) envelope {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Success || env.Error != status {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if message != "" && env.Message != message {
		t.Fatalf("message = %q, want %q", env.Message, message)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header in error response")
	}
	return env
}
