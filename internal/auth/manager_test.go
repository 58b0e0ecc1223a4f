package auth

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/resume-forge/internal/config"
)

func newAuthRouter(t *testing.T, m *Manager, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions(SessionCookieName, store))
	r.POST("/auth/login", m.Login)
	r.GET("/protected", m.RequireLogin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func authConfig(t *testing.T, password string) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return &config.Config{
		AppUsername:     "admin",
		AppPasswordHash: string(hash),
		SessionSecret:   "test-secret",
	}
}

func login(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginIssuesSession(t *testing.T) {
	cfg := authConfig(t, "correct horse")
	m := NewManager(cfg)
	router := newAuthRouter(t, m, cfg.SessionSecret)

	rec := login(router, `{"username":"admin","password":"correct horse"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("login status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login should set a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("protected route status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	cfg := authConfig(t, "correct horse")
	m := NewManager(cfg)
	router := newAuthRouter(t, m, cfg.SessionSecret)

	rec := login(router, `{"username":"admin","password":"battery staple"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireLoginBlocksAnonymousRequests(t *testing.T) {
	cfg := authConfig(t, "correct horse")
	m := NewManager(cfg)
	router := newAuthRouter(t, m, cfg.SessionSecret)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("protected route status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRepeatedFailuresLockTheClientOut(t *testing.T) {
	cfg := authConfig(t, "correct horse")
	m := NewManager(cfg)
	router := newAuthRouter(t, m, cfg.SessionSecret)

	for i := 0; i < maxLoginAttempts; i++ {
		rec := login(router, `{"username":"admin","password":"wrong"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want %d", i+1, rec.Code, http.StatusUnauthorized)
		}
	}

	rec := login(router, `{"username":"admin","password":"correct horse"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("locked login status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header is missing")
	}
}

func TestLockExpiresAfterLockDuration(t *testing.T) {
	cfg := authConfig(t, "correct horse")
	m := NewManager(cfg)
	router := newAuthRouter(t, m, cfg.SessionSecret)

	base := time.Now()
	m.now = func() time.Time { return base }

	for i := 0; i < maxLoginAttempts; i++ {
		login(router, `{"username":"admin","password":"wrong"}`)
	}
	if rec := login(router, `{"username":"admin","password":"correct horse"}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("locked login status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	m.now = func() time.Time { return base.Add(lockDuration + time.Minute) }
	if rec := login(router, `{"username":"admin","password":"correct horse"}`); rec.Code != http.StatusNoContent {
		t.Errorf("login after lock expiry status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
