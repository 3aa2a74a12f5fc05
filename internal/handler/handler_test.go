package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/fertilizer-advisor/internal/auth"
	"github.com/prn-tf/fertilizer-advisor/internal/classifier"
	"github.com/prn-tf/fertilizer-advisor/internal/config"
	"github.com/prn-tf/fertilizer-advisor/internal/lock"
	"github.com/prn-tf/fertilizer-advisor/internal/metrics"
	"github.com/prn-tf/fertilizer-advisor/internal/pkg/crypto"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
	"github.com/prn-tf/fertilizer-advisor/internal/repository/sqlite"
	"github.com/prn-tf/fertilizer-advisor/internal/service"
)

type testServer struct {
	handler http.Handler
	issuer  *auth.TokenIssuer
	metrics *metrics.Metrics
	db      *stubChecker
}

// stubChecker wraps the real database so tests can force health failures.
type stubChecker struct {
	real repository.DatabaseHealth
	err  error
}

func (s *stubChecker) Health(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	return s.real.Health(ctx)
}

type serverOptions struct {
	withoutModel bool
	rateLimit    config.RateLimitConfig
	maxBodySize  int64
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	result, err := sqlite.Open(ctx, config.DatabaseConfig{Driver: sqlite.DriverName, Path: sqlite.MemoryPath}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Database.Close() })

	locker := lock.NewMemoryLocker()
	t.Cleanup(locker.Stop)

	hasher, err := crypto.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	m := metrics.New()
	issuer := auth.NewTokenIssuer("handler-test-secret", time.Hour)

	users := service.NewUserService(result.Repos.User, hasher, locker, time.Second, logger)
	authService := service.NewAuthService(users, issuer, m, logger)

	recommendations := service.NewRecommendationService(result.Repos.Rule, locker, m, logger)
	_, err = recommendations.Seed(ctx)
	require.NoError(t, err)
	_, err = recommendations.Load(ctx)
	require.NoError(t, err)

	var predictions *service.PredictionService
	if opts.withoutModel {
		predictions = service.NewPredictionService(nil, m, logger)
	} else {
		model, err := classifier.Load(ctx, classifier.FileSource{Path: filepath.Join("..", "classifier", "testdata", "forest.json")}, classifier.LoadOptions{})
		require.NoError(t, err)
		predictions = service.NewPredictionService(model, m, logger)
	}

	checker := &stubChecker{real: result.Database}
	router := NewRouter(RouterConfig{
		AuthHandler:           NewAuthHandler(authService, logger),
		RecommendationHandler: NewRecommendationHandler(predictions, recommendations, logger),
		HealthHandler:         NewHealthHandler(checker, predictions, recommendations, logger),
		AuthMiddleware:        auth.Middleware(authService),
		Metrics:               m,
		CORS:                  config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}, MaxAge: 300},
		RateLimit:             opts.rateLimit,
		MaxBodySize:           opts.maxBodySize,
		Logger:                logger,
	})

	return &testServer{handler: router.Handler(), issuer: issuer, metrics: m, db: checker}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, body := s.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Fertilizer Recommendation API is running!", body["message"])
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, body := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, true, body["classifier_loaded"])
	require.EqualValues(t, 17, body["rules"])

	s.db.err = errors.New("database is closed")
	rec, body = s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "unhealthy", body["status"])
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, body := s.do(t, http.MethodPost, "/signup", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Signup successful", body["message"])

	rec, body = s.do(t, http.MethodPost, "/signup", `{"username":"alice","password":"other"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Username already exists", body["error"])

	rec, body = s.do(t, http.MethodPost, "/login", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	require.NotEmpty(t, body["expires_at"])

	username, ok := s.issuer.Validate(token)
	require.True(t, ok)
	require.Equal(t, "alice", username)

	rec, body = s.do(t, http.MethodGet, "/me", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", body["username"])
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, _ := s.do(t, http.MethodPost, "/signup", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	wrongRec, wrongBody := s.do(t, http.MethodPost, "/login", `{"username":"alice","password":"nope"}`)
	unknownRec, unknownBody := s.do(t, http.MethodPost, "/login", `{"username":"bob","password":"s3cret"}`)

	require.Equal(t, http.StatusBadRequest, wrongRec.Code)
	require.Equal(t, http.StatusBadRequest, unknownRec.Code)
	require.Equal(t, "Invalid credentials", wrongBody["error"])
	require.Equal(t, wrongBody, unknownBody)
}

func TestCredentials_Validation(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	tests := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{"missing password", "/signup", `{"username":"alice"}`, "password is required"},
		{"blank username", "/signup", `{"username":"  ","password":"pw"}`, "username must not be blank"},
		{"empty body", "/login", ``, "request body is required"},
		{"malformed json", "/login", `{"username":`, "request body must be valid JSON"},
		{"wrong type", "/signup", `{"username":42,"password":"pw"}`, "username must be a string"},
		{"trailing data", "/login", `{"username":"alice","password":"pw"} trailing`, "request body must contain a single JSON object"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, tc.path, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotEmpty(t, body["error"])
			if tc.message != "" {
				require.Contains(t, body["error"], tc.message)
			}
		})
	}
}

func TestMe_RequiresToken(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, body := s.do(t, http.MethodGet, "/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid or expired token", body["error"])

	expired := auth.NewTokenIssuer("handler-test-secret", time.Hour, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	token, err := expired.Issue("alice")
	require.NoError(t, err)

	rec, body = s.do(t, http.MethodGet, "/me", "", "Authorization", "Bearer "+token.Value)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid or expired token", body["error"])
}

func TestPredict(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	for _, path := range []string{"/predict", "/recommend"} {
		t.Run(path, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, path, `{"N":30,"P":10,"K":3}`)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "Urea", body["fertilizer"])

			rec, body = s.do(t, http.MethodPost, path, `{"N":30,"P":3,"K":10}`)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "28-28", body["fertilizer"])

			rec, body = s.do(t, http.MethodPost, path, `{"N":5,"P":3,"K":10}`)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "DAP", body["fertilizer"])
		})
	}
}

func TestPredict_Validation(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing K", `{"N":30,"P":10}`, "K is required"},
		{"negative", `{"N":-1,"P":10,"K":3}`, "N must be greater than or equal to 0"},
		{"non-numeric", `{"N":"lots","P":10,"K":3}`, "N must be a number"},
		{"quoted number", `{"N":"10","P":5,"K":3}`, "N must be a number"},
		{"trailing data", `{"N":10,"P":5,"K":3} trailing`, "request body must contain a single JSON object"},
		{"second object", `{"N":10,"P":5,"K":3}{"N":1}`, "request body must contain a single JSON object"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, "/predict", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotEmpty(t, body["error"])
			if tc.message != "" {
				require.Contains(t, body["error"], tc.message)
			}
		})
	}
}

func TestPredict_ModelUnavailable(t *testing.T) {
	s := newTestServer(t, serverOptions{withoutModel: true})

	rec, body := s.do(t, http.MethodPost, "/predict", `{"N":30,"P":10,"K":3}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotEmpty(t, body["error"])

	rec, body = s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["classifier_loaded"])
}

func TestRecommendations(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, body := s.do(t, http.MethodPost, "/api/recommendations", `{"crop":"Wheat","N":50,"P":0,"K":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Urea", body["fertilizer"])
	require.Equal(t, true, body["matched"])
	require.Equal(t, "rules", body["source"])

	rec, body = s.do(t, http.MethodPost, "/api/recommendations", `{"crop":"Wheat","N":0,"P":0,"K":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "No recommendation found", body["fertilizer"])
	require.Equal(t, false, body["matched"])

	rec, body = s.do(t, http.MethodPost, "/api/recommendations", `{"N":50,"P":0,"K":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, body["error"], "crop is required")
}

func TestRecommendationCropsAndRules(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, body := s.do(t, http.MethodGet, "/api/recommendations/crops", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []interface{}{"Wheat", "Rice", "Maize", "Cotton", "Sugarcane", "Potato"}, body["crops"])

	rec, body = s.do(t, http.MethodGet, "/api/recommendations/rules?crop=wheat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rules, ok := body["rules"].([]interface{})
	require.True(t, ok)
	require.Len(t, rules, 3)

	rec, _ = s.do(t, http.MethodGet, "/api/recommendations/rules", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, serverOptions{
		rateLimit: config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute},
	})

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodPost, "/login", `{"username":"x","password":"y"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec, body := s.do(t, http.MethodPost, "/login", `{"username":"x","password":"y"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "Too many requests", body["error"])

	// Other routes are not limited.
	rec, _ = s.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	s := newTestServer(t, serverOptions{maxBodySize: 64})

	big := `{"username":"` + strings.Repeat("a", 200) + `","password":"pw"}`
	rec, body := s.do(t, http.MethodPost, "/signup", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, "request body too large", body["error"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "https://farm.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotFoundAndMetrics(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, body := s.do(t, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not found", body["error"])

	s.do(t, http.MethodPost, "/api/recommendations", `{"crop":"Wheat","N":0,"P":0,"K":0}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.handler.ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code)
	require.Contains(t, mrec.Body.String(), `fertilizer_recommendations_total{outcome="no_match",source="rules"} 1`)
	require.Contains(t, mrec.Body.String(), "fertilizer_http_requests_total")
	require.Contains(t, mrec.Body.String(), `status="404"`)
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec, _ := s.do(t, http.MethodGet, "/", "", RequestIDHeader, "req-123")
	require.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}
