package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opendata-tw/roadwatch/config"
)

func newTestManager(url string) *Manager {
	return NewManager(config.AuthConfig{
		TokenURL:     url,
		ClientID:     "client",
		ClientSecret: "secret",
		SafetyMargin: 60 * time.Second,
	})
}

func tokenServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
}

func TestGetTokenSingleFlight(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls)
	defer srv.Close()

	m := newTestManager(srv.URL)
	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.GetToken(context.Background())
			if err != nil {
				t.Errorf("GetToken: %v", err)
				return
			}
			if token != "tok-1" {
				t.Errorf("token = %q", token)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected exactly one exchange, got %d", got)
	}
}

func TestGetTokenCached(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls)
	defer srv.Close()

	m := newTestManager(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := m.GetToken(context.Background()); err != nil {
			t.Fatalf("GetToken: %v", err)
		}
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected one exchange for repeated calls, got %d", got)
	}
}

func TestGetTokenRefreshesInsideSafetyMargin(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls)
	defer srv.Close()

	m := newTestManager(srv.URL)
	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	// Move the clock to within the safety margin of expiry.
	m.now = func() time.Time { return time.Now().Add(3590 * time.Second) }
	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected refresh inside safety margin, got %d exchanges", got)
	}
}

func TestInvalidateForcesRefresh(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls)
	defer srv.Close()

	m := newTestManager(srv.URL)
	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	m.Invalidate()
	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken after invalidate: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected refresh after invalidate, got %d exchanges", got)
	}
}

func TestGetTokenErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := newTestManager(srv.URL)
	_, err := m.GetToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", authErr.Status)
	}
}

func TestGetTokenMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer srv.Close()

	m := newTestManager(srv.URL)
	_, err := m.GetToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError for absent access_token, got %v", err)
	}
}
