package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/enchantedleftovers/web/internal/infrastructure/config"
	"github.com/enchantedleftovers/web/internal/infrastructure/leftoverapi"
	"github.com/enchantedleftovers/web/internal/infrastructure/monitoring"
	"github.com/enchantedleftovers/web/internal/infrastructure/security"
	"github.com/enchantedleftovers/web/internal/infrastructure/spoonacular"
	"github.com/enchantedleftovers/web/pkg/healthcheck"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "valid-token"

// fakeBackend stands in for the Leftover Chef backend API
type fakeBackend struct {
	server *httptest.Server

	mu          sync.Mutex
	saved       []leftoverapi.SavedRecipe
	nextID      int
	searchCalls int
	failSaved   bool
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{nextID: 1}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds leftoverapi.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)

		if creds.Email != "user@example.com" || creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(leftoverapi.AuthResponse{Token: testToken})
	})
	mux.HandleFunc("POST /api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var reg leftoverapi.Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)

		if reg.Email == "taken@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "Email already in use"})
			return
		}
		json.NewEncoder(w).Encode(leftoverapi.AuthResponse{Token: testToken})
	})
	mux.HandleFunc("GET /api/v1/recipes/search", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		b.mu.Lock()
		b.searchCalls++
		b.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]interface{}{
			"recipes": []leftoverapi.SearchRecipe{
				{ID: 101, Title: "Tomato Soup", Image: "https://img.test/101.jpg"},
				{ID: 102, Title: "Bruschetta", Image: "https://img.test/102.jpg"},
			},
		})
	})
	mux.HandleFunc("GET /api/v1/recipes/saved", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		if b.failSaved {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		saved := b.saved
		if saved == nil {
			saved = []leftoverapi.SavedRecipe{}
		}
		json.NewEncoder(w).Encode(saved)
	})
	mux.HandleFunc("POST /api/v1/recipes/save", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req leftoverapi.SaveRecipeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		b.saved = append(b.saved, leftoverapi.SavedRecipe{
			ID:            fmt.Sprintf("id-%d", b.nextID),
			Title:         req.Title,
			Image:         req.Image,
			SourceURL:     req.SourceURL,
			SpoonacularID: req.SpoonacularID,
		})
		b.nextID++
		b.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("DELETE /api/v1/recipes/delete/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		id := r.PathValue("id")

		b.mu.Lock()
		defer b.mu.Unlock()
		for i, recipe := range b.saved {
			if recipe.ID == id {
				b.saved = append(b.saved[:i], b.saved[i+1:]...)
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	b.server = httptest.NewServer(mux)
	return b
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+testToken
}

func (b *fakeBackend) searchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.searchCalls
}

func newFakeSpoonacular() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /recipes/101/information", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"title": "Tomato Soup",
			"image": "https://img.test/101.jpg",
			"extendedIngredients": []map[string]interface{}{
				{"id": 1, "original": "2 ripe tomatoes"},
			},
			"instructions": `<ol><li>Chop the tomatoes.</li></ol><script>alert('xss')</script>`,
		})
	})
	mux.HandleFunc("GET /recipes/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

type testServer struct {
	web      *WebServer
	backend  *fakeBackend
	sessions SessionStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	backend := newFakeBackend()
	t.Cleanup(backend.server.Close)

	spoon := newFakeSpoonacular()
	t.Cleanup(spoon.Close)

	cfg := &config.Config{}
	cfg.App.Name = "Enchanted Leftovers"
	cfg.App.Version = "1.0.0"
	cfg.App.Environment = "test"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Backend.BaseURL = backend.server.URL
	cfg.Backend.Timeout = 5 * time.Second
	cfg.Spoonacular.BaseURL = spoon.URL
	cfg.Spoonacular.APIKey = "test-key"
	cfg.Spoonacular.Timeout = 5 * time.Second
	cfg.Session.CookieName = "leftovers-session"
	cfg.Session.MaxAge = time.Hour
	cfg.Session.Store = "memory"
	cfg.Monitoring.EnableMetrics = true

	log := zap.NewNop()
	metrics := monitoring.NewMetricsCollector(log)
	sessions := NewMemorySessionStore(cfg.Session.MaxAge, log)

	hc := healthcheck.New(cfg.App.Version, log)

	web, err := NewWebServer(
		cfg,
		log,
		leftoverapi.NewClient(cfg, log, metrics),
		spoonacular.NewClient(cfg, log, metrics),
		sessions,
		security.NewSanitizer(log),
		hc,
		metrics,
	)
	require.NoError(t, err)

	return &testServer{web: web, backend: backend, sessions: sessions}
}

// authenticate creates a logged-in session and returns its cookie
func (ts *testServer) authenticate(t *testing.T) *http.Cookie {
	t.Helper()
	return ts.sessionWithToken(t, testToken)
}

func (ts *testServer) sessionWithToken(t *testing.T, token string) *http.Cookie {
	t.Helper()

	session, err := ts.sessions.New(context.Background())
	require.NoError(t, err)

	session.Token = token
	require.NoError(t, ts.sessions.Save(context.Background(), session))

	return &http.Cookie{Name: "leftovers-session", Value: session.ID}
}

func (ts *testServer) do(method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	ts.web.Router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) session(t *testing.T, cookie *http.Cookie) *Session {
	t.Helper()

	session, err := ts.sessions.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	return session
}

func expiredJWT(t *testing.T) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return signed
}

func TestHome_RedirectsWhenUnauthenticated(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/", nil, nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLogin_Success(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.sessionWithToken(t, "")

	form := url.Values{"email": {"user@example.com"}, "password": {"secret"}}
	rec := ts.do(http.MethodPost, "/login", form, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	session := ts.session(t, cookie)
	assert.Equal(t, testToken, session.Token)
}

func TestLogin_UpstreamErrorMessage(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.sessionWithToken(t, "")

	form := url.Values{"email": {"user@example.com"}, "password": {"wrong"}}
	rec := ts.do(http.MethodPost, "/login", form, cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")

	session := ts.session(t, cookie)
	assert.False(t, session.Authenticated())
}

func TestLoginPage_RedirectsWhenAuthenticated(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	rec := ts.do(http.MethodGet, "/login", nil, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLoginPage_RegisterMode(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/login?mode=register", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/register"`)
	assert.Contains(t, rec.Body.String(), `name="role"`)
}

func TestRegister_Success(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.sessionWithToken(t, "")

	form := url.Values{
		"name":     {"Ada"},
		"email":    {"ada@example.com"},
		"password": {"secret"},
		"role":     {"user"},
	}
	rec := ts.do(http.MethodPost, "/register", form, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	session := ts.session(t, cookie)
	assert.True(t, session.Authenticated())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.sessionWithToken(t, "")

	form := url.Values{
		"name":     {"Ada"},
		"email":    {"taken@example.com"},
		"password": {"secret"},
	}
	rec := ts.do(http.MethodPost, "/register", form, cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already in use")
}

func TestLogout_ClearsSession(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	rec := ts.do(http.MethodPost, "/logout", nil, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	session := ts.session(t, cookie)
	assert.False(t, session.Authenticated())
}

func TestHome_ShowsWelcomeWithoutResults(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	rec := ts.do(http.MethodGet, "/", nil, cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grandmother")
	assert.Contains(t, rec.Body.String(), "saved any recipes yet")
}

func TestSearch_StoresResults(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	form := url.Values{"ingredients": {"tomato, basil"}}
	rec := ts.do(http.MethodPost, "/search", form, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?from=search", rec.Header().Get("Location"))

	session := ts.session(t, cookie)
	require.Len(t, session.Results, 2)

	home := ts.do(http.MethodGet, "/?from=search", nil, cookie)
	assert.Contains(t, home.Body.String(), "Tomato Soup")
	assert.Contains(t, home.Body.String(), "Search Results")
}

func TestSearch_EmptyInputSkipsBackend(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	form := url.Values{"ingredients": {"   "}}
	rec := ts.do(http.MethodPost, "/search", form, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 0, ts.backend.searchCount())

	home := ts.do(http.MethodGet, "/?from=search", nil, cookie)
	assert.Contains(t, home.Body.String(), "Please enter ingredients to search")
}

func TestHome_ClearsResultsOnFreshEntry(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	form := url.Values{"ingredients": {"tomato"}}
	ts.do(http.MethodPost, "/search", form, cookie)

	// Navigation carrying the marker keeps the results
	withMarker := ts.do(http.MethodGet, "/?from=recipe", nil, cookie)
	assert.Contains(t, withMarker.Body.String(), "Tomato Soup")

	// A fresh entry drops them
	fresh := ts.do(http.MethodGet, "/", nil, cookie)
	assert.NotContains(t, fresh.Body.String(), "Tomato Soup")

	session := ts.session(t, cookie)
	assert.Nil(t, session.Results)
}

func TestSave_UsesSourceURLFallback(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	form := url.Values{
		"id":    {"101"},
		"title": {"Tomato Soup"},
		"image": {"https://img.test/101.jpg"},
	}
	rec := ts.do(http.MethodPost, "/recipes/save", form, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?from=save", rec.Header().Get("Location"))

	ts.backend.mu.Lock()
	require.Len(t, ts.backend.saved, 1)
	saved := ts.backend.saved[0]
	ts.backend.mu.Unlock()

	assert.Equal(t, "https://spoonacular.com/recipes/101", saved.SourceURL)
	assert.Equal(t, 101, saved.SpoonacularID)

	home := ts.do(http.MethodGet, "/?from=save", nil, cookie)
	assert.Contains(t, home.Body.String(), "Recipe saved!")
	assert.Contains(t, home.Body.String(), "Tomato Soup")
}

func TestSave_KeepsProvidedSourceURL(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	form := url.Values{
		"id":        {"101"},
		"title":     {"Tomato Soup"},
		"image":     {"https://img.test/101.jpg"},
		"sourceUrl": {"https://family.example/soup"},
	}
	ts.do(http.MethodPost, "/recipes/save", form, cookie)

	ts.backend.mu.Lock()
	defer ts.backend.mu.Unlock()
	require.Len(t, ts.backend.saved, 1)
	assert.Equal(t, "https://family.example/soup", ts.backend.saved[0].SourceURL)
}

func TestDelete_RemovesRecipe(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	ts.backend.mu.Lock()
	ts.backend.saved = []leftoverapi.SavedRecipe{{ID: "id-1", Title: "Tomato Soup"}}
	ts.backend.mu.Unlock()

	rec := ts.do(http.MethodPost, "/recipes/delete/id-1", nil, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?from=delete", rec.Header().Get("Location"))

	ts.backend.mu.Lock()
	assert.Empty(t, ts.backend.saved)
	ts.backend.mu.Unlock()

	home := ts.do(http.MethodGet, "/?from=delete", nil, cookie)
	assert.Contains(t, home.Body.String(), "Deleted")
}

func TestDelete_MissingIDStillSucceeds(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	rec := ts.do(http.MethodPost, "/recipes/delete/gone", nil, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)

	home := ts.do(http.MethodGet, "/?from=delete", nil, cookie)
	assert.Contains(t, home.Body.String(), "Deleted")
	assert.NotContains(t, home.Body.String(), "Error deleting recipe")
}

func TestHome_SavedCardLinks(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	ts.backend.mu.Lock()
	ts.backend.saved = []leftoverapi.SavedRecipe{
		{ID: "id-1", Title: "From Search", SpoonacularID: 101, SourceURL: "https://spoonacular.com/recipes/101"},
		{ID: "id-2", Title: "Family Recipe", SourceURL: "https://family.example/stew"},
		{ID: "id-3", Title: "Orphan Record"},
	}
	ts.backend.mu.Unlock()

	rec := ts.do(http.MethodGet, "/", nil, cookie)
	body := rec.Body.String()

	// spoonacularId wins over sourceUrl
	assert.Contains(t, body, `href="/recipe/101"`)
	// sourceUrl-only records open the external page
	assert.Contains(t, body, `href="https://family.example/stew" target="_blank"`)
	// records with neither render without a link
	assert.Contains(t, body, "Orphan Record")
	assert.NotContains(t, body, `href="/recipe/0"`)
}

func TestHome_SavedFetchFailureRendersEmpty(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	ts.backend.mu.Lock()
	ts.backend.failSaved = true
	ts.backend.mu.Unlock()

	rec := ts.do(http.MethodGet, "/", nil, cookie)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "saved any recipes yet")
}

func TestAuthRejection_ForcesLogin(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.sessionWithToken(t, "revoked-token")

	rec := ts.do(http.MethodGet, "/", nil, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	session := ts.session(t, cookie)
	assert.False(t, session.Authenticated())

	login := ts.do(http.MethodGet, "/login", nil, cookie)
	assert.Contains(t, login.Body.String(), "Your session has expired")
}

func TestExpiredJWT_RedirectsWithoutBackendCall(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.sessionWithToken(t, expiredJWT(t))

	form := url.Values{"ingredients": {"tomato"}}
	rec := ts.do(http.MethodPost, "/search", form, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, 0, ts.backend.searchCount())

	session := ts.session(t, cookie)
	assert.False(t, session.Authenticated())
}

func TestUnauthenticatedAction_ShowsWarning(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.sessionWithToken(t, "")

	form := url.Values{"id": {"101"}, "title": {"Tomato Soup"}}
	rec := ts.do(http.MethodPost, "/recipes/save", form, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	ts.backend.mu.Lock()
	assert.Empty(t, ts.backend.saved)
	ts.backend.mu.Unlock()

	login := ts.do(http.MethodGet, "/login", nil, cookie)
	assert.Contains(t, login.Body.String(), "Please log in to continue")
}

func TestRecipeDetail_RendersSanitizedInstructions(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/recipe/101", nil, nil)
	body := rec.Body.String()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "Tomato Soup")
	assert.Contains(t, body, "2 ripe tomatoes")
	assert.Contains(t, body, "<ol><li>Chop the tomatoes.</li></ol>")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, `href="/?from=recipe"`)
}

func TestRecipeDetail_FetchFailureShowsLoading(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/recipe/999", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Loading...")
}

func TestRecipeDetail_NonNumericID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/recipe/abc", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlashes_ShownOnce(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.authenticate(t)

	form := url.Values{"id": {"101"}, "title": {"Tomato Soup"}}
	ts.do(http.MethodPost, "/recipes/save", form, cookie)

	first := ts.do(http.MethodGet, "/?from=save", nil, cookie)
	assert.Contains(t, first.Body.String(), "Recipe saved!")

	second := ts.do(http.MethodGet, "/?from=save", nil, cookie)
	assert.NotContains(t, second.Body.String(), "Recipe saved!")
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/login", nil, nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestSessionMiddleware_IssuesCookie(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/login", nil, nil)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "leftovers-session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	health := ts.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, health.Code)

	live := ts.do(http.MethodGet, "/live", nil, nil)
	assert.Equal(t, http.StatusOK, live.Code)

	ready := ts.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, ready.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.do(http.MethodGet, "/login", nil, nil)

	rec := ts.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.web.config.RateLimit.Enable = true
	ts.web.config.RateLimit.RequestsPerMin = 60
	ts.web.config.RateLimit.BurstSize = 2

	// Rebuild routes so the middleware picks up the enabled limiter
	ts.web.router = ts.web.setupRoutes()

	var limited bool
	for i := 0; i < 10; i++ {
		rec := ts.do(http.MethodGet, "/login", nil, nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}

	assert.True(t, limited)
}
