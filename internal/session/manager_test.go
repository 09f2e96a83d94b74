package session

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/config"
	"github.com/suqaba/suqaba-cli/internal/events"
	"github.com/suqaba/suqaba-cli/internal/logging"
	"github.com/suqaba/suqaba-cli/internal/models"
	"github.com/suqaba/suqaba-cli/internal/ratelimit"
)

func newTestBackend(t *testing.T, r chi.Router) (*api.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.APIBaseURL = srv.URL
	client, err := api.NewClient(cfg,
		api.WithRateLimiter(ratelimit.NewRateLimiter(1000, 1000, logging.NewNop())))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, srv
}

func writeJSON(w nethttp.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearer(req *nethttp.Request) string {
	return strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
}

// meHandler answers /auth/me for the tokens in users and 401 otherwise.
func meHandler(users map[string]models.User) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, req *nethttp.Request) {
		user, ok := users[bearer(req)]
		if !ok {
			writeJSON(w, nethttp.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		writeJSON(w, nethttp.StatusOK, user)
	}
}

// loginHandler accepts any password and issues "tok-<username>".
func loginHandler(w nethttp.ResponseWriter, req *nethttp.Request) {
	_ = req.ParseForm()
	email := req.PostForm.Get("username")
	if req.PostForm.Get("password") != "pw" {
		writeJSON(w, nethttp.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
		return
	}
	writeJSON(w, nethttp.StatusOK, models.AuthResponse{
		AccessToken: "tok-" + email,
		User:        models.User{ID: email, Email: email, Name: email},
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRestoreValidToken(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/auth/me", meHandler(map[string]models.User{
		"good": {ID: "u1", Email: "ada@x.com", Name: "Ada", JobCounts: models.JobCounts{Completed: 3, Processing: 1}},
	}))
	client, _ := newTestBackend(t, r)
	store := config.NewMemoryTokenStore("good")
	bus := events.NewEventBus(10)
	defer bus.Close()
	changes := bus.Subscribe(events.EventSessionChanged)

	m := NewManager(client, store, WithEventBus(bus))
	s, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if s == nil || s.Token != "good" || s.Email != "ada@x.com" || s.JobCounts.Total() != 4 {
		t.Fatalf("unexpected session %+v", s)
	}
	if m.Current() != s {
		t.Error("Current() should return the restored session")
	}

	select {
	case ev := <-changes:
		if e := ev.(*events.SessionChangedEvent); e.Reason != "restore" || e.UserID != "u1" {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("expected a session changed event")
	}
}

func TestRestoreRejectedTokenClearsStore(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/auth/me", meHandler(nil))
	client, _ := newTestBackend(t, r)
	store := config.NewMemoryTokenStore("revoked")

	m := NewManager(client, store)
	s, err := m.Restore(context.Background())
	if err != nil || s != nil {
		t.Fatalf("Restore() = %v, %v; want nil, nil", s, err)
	}
	if _, err := store.Load(); !errors.Is(err, config.ErrNoToken) {
		t.Errorf("token should be cleared, Load() error = %v", err)
	}
	if _, err := m.Require(); !errors.Is(err, api.ErrUnauthenticated) {
		t.Errorf("Require() error = %v, want ErrUnauthenticated", err)
	}
}

func TestRestoreNetworkErrorKeepsToken(t *testing.T) {
	client, srv := newTestBackend(t, chi.NewRouter())
	srv.Close()
	store := config.NewMemoryTokenStore("good")

	m := NewManager(client, store)
	s, err := m.Restore(context.Background())
	if err != nil || s != nil {
		t.Fatalf("Restore() = %v, %v; want nil, nil", s, err)
	}
	if tok, err := store.Load(); err != nil || tok != "good" {
		t.Errorf("token should be kept, got %q, %v", tok, err)
	}
}

func TestRestoreExpiredJWTSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/auth/me", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		calls.Add(1)
		writeJSON(w, nethttp.StatusOK, models.User{ID: "u1"})
	})
	client, _ := newTestBackend(t, r)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	store := config.NewMemoryTokenStore(expired)

	m := NewManager(client, store)
	if s, _ := m.Restore(context.Background()); s != nil {
		t.Fatalf("expected nil session, got %+v", s)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no /auth/me call, got %d", calls.Load())
	}
	if _, err := store.Load(); !errors.Is(err, config.ErrNoToken) {
		t.Error("expired token should be cleared")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sign := func(exp time.Time) string {
		tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("k"))
		return tok
	}
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("k"))

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"past", sign(now.Add(-time.Minute)), true},
		{"future", sign(now.Add(time.Minute)), false},
		{"no exp", noExp, false},
		{"opaque", "not-a-jwt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenExpired(tt.token, now); got != tt.want {
				t.Errorf("tokenExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRestoreWithoutToken(t *testing.T) {
	client, _ := newTestBackend(t, chi.NewRouter())
	m := NewManager(client, config.NewMemoryTokenStore(""))

	s, err := m.Restore(context.Background())
	if s != nil || err != nil {
		t.Errorf("Restore() = %v, %v; want nil, nil", s, err)
	}
}

func TestLoginAndLogout(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/login", loginHandler)
	client, _ := newTestBackend(t, r)
	store := config.NewMemoryTokenStore("")
	m := NewManager(client, store)

	s, err := m.Login(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if s.Token != "tok-a@x.com" || s.BearerToken() != s.Token {
		t.Errorf("unexpected session %+v", s)
	}
	if tok, _ := store.Load(); tok != "tok-a@x.com" {
		t.Errorf("stored token = %q", tok)
	}

	m.Logout()
	if m.Current() != nil {
		t.Error("session should be nil after logout")
	}
	if _, err := store.Load(); !errors.Is(err, config.ErrNoToken) {
		t.Error("token should be cleared after logout")
	}

	// Logout without a session is a no-op
	m.Logout()
}

func TestLoginFailureLeavesNoSession(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/login", loginHandler)
	client, _ := newTestBackend(t, r)
	store := config.NewMemoryTokenStore("")
	m := NewManager(client, store)

	_, err := m.Login(context.Background(), "a@x.com", "wrong")
	var authErr *api.AuthError
	if !errors.As(err, &authErr) || authErr.Message != "Incorrect email or password" {
		t.Fatalf("expected AuthError with server message, got %v", err)
	}
	if m.Current() != nil {
		t.Error("failed login must not create a session")
	}
	if _, err := store.Load(); !errors.Is(err, config.ErrNoToken) {
		t.Error("failed login must not store a token")
	}
}

func TestConcurrentLoginsRunInOrder(t *testing.T) {
	arrivedA := make(chan struct{})
	releaseA := make(chan struct{})
	var mu sync.Mutex
	var order []string

	r := chi.NewRouter()
	r.Post("/auth/login", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		_ = req.ParseForm()
		user := req.PostForm.Get("username")
		mu.Lock()
		order = append(order, user)
		mu.Unlock()
		if user == "a@x.com" {
			close(arrivedA)
			<-releaseA
		}
		loginHandler(w, req)
	})
	client, _ := newTestBackend(t, r)
	m := NewManager(client, config.NewMemoryTokenStore(""))

	var wg sync.WaitGroup
	var errA, errB error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errA = m.Login(context.Background(), "a@x.com", "pw")
	}()
	<-arrivedA

	go func() {
		defer wg.Done()
		_, errB = m.Login(context.Background(), "b@x.com", "pw")
	}()
	waitFor(t, func() bool { return m.turns.pending() == 1 })

	mu.Lock()
	if len(order) != 1 {
		t.Errorf("second login should wait, server saw %v", order)
	}
	mu.Unlock()

	close(releaseA)
	wg.Wait()

	if errA != nil || errB != nil {
		t.Fatalf("logins failed: a=%v b=%v", errA, errB)
	}
	if got := m.Current(); got == nil || got.Email != "b@x.com" {
		t.Errorf("final session should be b, got %+v", got)
	}
	if strings.Join(order, ",") != "a@x.com,b@x.com" {
		t.Errorf("server order = %v", order)
	}
}

func TestLoginWaitHonorsContext(t *testing.T) {
	client, _ := newTestBackend(t, chi.NewRouter())
	m := NewManager(client, config.NewMemoryTokenStore(""))

	if err := m.turns.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.turns.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Login(ctx, "a@x.com", "pw"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Login() error = %v, want deadline exceeded", err)
	}
	if m.turns.pending() != 0 {
		t.Error("cancelled waiter should leave the queue")
	}
}

func TestLogoutDiscardsInFlightLogin(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Post("/auth/login", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		close(arrived)
		<-release
		loginHandler(w, req)
	})
	client, _ := newTestBackend(t, r)
	store := config.NewMemoryTokenStore("")
	m := NewManager(client, store)

	done := make(chan error, 1)
	go func() {
		_, err := m.Login(context.Background(), "a@x.com", "pw")
		done <- err
	}()
	<-arrived
	m.Logout()
	close(release)

	if err := <-done; !errors.Is(err, ErrSessionChanged) {
		t.Errorf("Login() error = %v, want ErrSessionChanged", err)
	}
	if m.Current() != nil {
		t.Error("stale login must not install a session")
	}
	if _, err := store.Load(); !errors.Is(err, config.ErrNoToken) {
		t.Error("stale login must not persist its token")
	}
}

func TestLogoutDiscardsInFlightRefresh(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Post("/auth/login", loginHandler)
	r.Get("/auth/me", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		close(arrived)
		<-release
		writeJSON(w, nethttp.StatusOK, models.User{ID: "a@x.com", Email: "a@x.com", JobCounts: models.JobCounts{Queued: 9}})
	})
	client, _ := newTestBackend(t, r)
	m := NewManager(client, config.NewMemoryTokenStore(""))

	if _, err := m.Login(context.Background(), "a@x.com", "pw"); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		m.Refresh(context.Background())
		close(done)
	}()
	<-arrived
	m.Logout()
	close(release)
	<-done

	if m.Current() != nil {
		t.Error("refresh issued before logout must not resurrect the session")
	}
}

func TestRefreshUpdatesCounts(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/login", loginHandler)
	r.Get("/auth/me", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, models.User{ID: "a@x.com", Email: "a@x.com", Name: "Ada", JobCounts: models.JobCounts{Queued: 1}})
	})
	client, _ := newTestBackend(t, r)
	m := NewManager(client, config.NewMemoryTokenStore(""))

	before, err := m.Login(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	m.Refresh(context.Background())

	after := m.Current()
	if after.JobCounts.Queued != 1 || after.DisplayName != "Ada" {
		t.Errorf("refresh not applied: %+v", after)
	}
	if after.Token != before.Token || after.Epoch() != before.Epoch() {
		t.Error("refresh must not change the token or epoch")
	}
	if before.JobCounts.Queued != 0 {
		t.Error("refresh must not mutate a published session")
	}
}

func TestUnauthorizedResponseClearsSession(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/auth/login", loginHandler)
	r.Get("/auth/me", meHandler(nil))
	client, _ := newTestBackend(t, r)
	store := config.NewMemoryTokenStore("")
	m := NewManager(client, store, WithLogger(logging.NewNop()))

	if _, err := m.Login(context.Background(), "a@x.com", "pw"); err != nil {
		t.Fatal(err)
	}
	m.Refresh(context.Background())

	if m.Current() != nil {
		t.Error("401 on the current token should clear the session")
	}
	if _, err := store.Load(); !errors.Is(err, config.ErrNoToken) {
		t.Error("401 on the current token should clear the store")
	}
}

func TestNilSessionCredential(t *testing.T) {
	var s *Session
	if s.BearerToken() != "" || s.Epoch() != 0 {
		t.Error("nil session should have no token")
	}
}
