package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/authkit/auth-service/internal/api/http/handlers"
	"github.com/authkit/auth-service/internal/auth"
	"github.com/authkit/auth-service/internal/domain"
	"github.com/authkit/auth-service/internal/events"
	"github.com/authkit/auth-service/internal/observability"
	"github.com/authkit/auth-service/internal/persistence"
	"github.com/authkit/auth-service/internal/repository"
	"github.com/authkit/auth-service/internal/service"
	"github.com/authkit/auth-service/internal/worker"
)

type testServer struct {
	app     *fiber.App
	repo    repository.UserRepository
	hasher  *auth.BcryptHasher
	audit   *service.AuditService
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		TTL:        time.Hour,
	})
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := repository.NewMemoryUserRepository()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	audit := service.NewAuditService(client, "auth:events")
	auditWorker := worker.StartAuditWorker(dispatcher, audit, metrics, logger, worker.AuditWorkerConfig{})
	t.Cleanup(func() { _ = auditWorker.Stop(context.Background()) })

	authService := service.NewAuthService(service.AuthDependencies{
		Users:  repo,
		Hasher: hasher,
		Tokens: tokens,
		Events: dispatcher,
		Logger: logger,
	})
	userService := service.NewUserService(repo, hasher, dispatcher, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("auth-service", "test", &persistence.Postgres{}, &persistence.Redis{Client: client}, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService, userService, audit),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})

	return &testServer{app: app, repo: repo, hasher: hasher, audit: audit, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) seed(t *testing.T, username, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := s.hasher.Hash(password)
	require.NoError(t, err)
	user, err := s.repo.Save(context.Background(), &domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		Enabled:      true,
	})
	require.NoError(t, err)
	return user
}

func (s *testServer) login(t *testing.T, usernameOrEmail, password string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": usernameOrEmail,
		"password":        password,
	})
	require.Equal(t, http.StatusOK, status, body)
	return body["data"].(map[string]any)["token"].(string)
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":        "alice",
		"email":           "alice@example.com",
		"password":        "password123",
		"confirmPassword": "password123",
	})
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Bearer", data["type"])
	assert.Equal(t, "USER", data["user"].(map[string]any)["role"])

	token := s.login(t, "alice@example.com", "password123")

	status, body = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["data"].(map[string]any)["username"])
	assert.NotContains(t, body["data"], "passwordHash")

	status, _ = s.do(t, http.MethodGet, "/api/users/profile", token, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "alice", "password123", domain.RoleUser)

	wrongStatus, wrongBody := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": "alice",
		"password":        "nope",
	})
	ghostStatus, ghostBody := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": "ghost",
		"password":        "nope",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, wrongStatus, ghostStatus)
	assert.Equal(t, wrongBody, ghostBody)
	assert.Equal(t, "UNAUTHORIZED", errorCode(wrongBody))
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "alice", "password123", domain.RoleUser)

	status, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":        "bob",
		"email":           "bob@example.com",
		"password":        "password1",
		"confirmPassword": "password2",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":        "alice",
		"email":           "other@example.com",
		"password":        "password1",
		"confirmPassword": "password1",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "carol",
		"email":    "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"].(map[string]any)["details"], "email")
}

func TestRegisterCannotShadowAnotherUsersEmail(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":        "alice",
		"email":           "alice@example.com",
		"password":        "password123",
		"confirmPassword": "password123",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":        "alice@example.com",
		"email":           "mallory@example.com",
		"password":        "password123",
		"confirmPassword": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"].(map[string]any)["details"], "username")

	s.login(t, "alice@example.com", "password123")
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = s.do(t, http.MethodGet, "/api/auth/me", "not.a.token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestValidateAndRefresh(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "alice", "password123", domain.RoleUser)
	token := s.login(t, "alice", "password123")

	status, body := s.do(t, http.MethodPost, "/api/auth/validate", token, nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, "alice", data["username"])

	for _, presented := range []string{"garbage", ""} {
		status, body = s.do(t, http.MethodPost, "/api/auth/validate", presented, nil)
		assert.Equal(t, http.StatusUnauthorized, status, presented)
		assert.Equal(t, false, body["data"].(map[string]any)["valid"], presented)
	}

	status, body = s.do(t, http.MethodPost, "/api/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["data"].(map[string]any)["token"])
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, "root", "password123", domain.RoleAdmin)
	alice := s.seed(t, "alice", "password123", domain.RoleUser)

	userToken := s.login(t, "alice", "password123")
	adminToken := s.login(t, "root", "password123")

	status, _ := s.do(t, http.MethodGet, "/api/users/all", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := s.do(t, http.MethodGet, "/api/users/all", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, body = s.do(t, http.MethodGet, "/api/users/"+alice.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["data"].(map[string]any)["username"])

	status, _ = s.do(t, http.MethodPut, "/api/users/"+alice.ID+"/enabled", adminToken, map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": "alice",
		"password":        "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPost, "/api/auth/refresh", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodPut, "/api/users/"+alice.ID+"/password", adminToken, map[string]string{"newPassword": "brand-new-pass"})
	require.Equal(t, http.StatusOK, status)

	assert.Eventually(t, func() bool {
		status, body := s.do(t, http.MethodGet, "/api/users/audit?limit=3", adminToken, nil)
		data, _ := body["data"].([]any)
		return status == http.StatusOK && len(data) == 3
	}, 2*time.Second, 10*time.Millisecond)

	status, _ = s.do(t, http.MethodDelete, "/api/users/"+alice.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = s.do(t, http.MethodGet, "/api/users/"+alice.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "ok", deps["redis"])

	status, body = s.do(t, http.MethodGet, "/health/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "requests")
}

func TestUnknownRouteRendersError(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}
