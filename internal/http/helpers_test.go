package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"user-sync/internal/auth0"
	"user-sync/internal/domain"
	"user-sync/internal/repository"
	"user-sync/internal/service"
)

const (
	testIssuer   = "https://tenant.auth0.com/"
	testAudience = "https://api.example.com"
	testKid      = "kid-1"
)

type mockUserRepo struct {
	usersByID   map[string]domain.User
	usersByAuth map[string]string
	updates     int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:   make(map[string]domain.User),
		usersByAuth: make(map[string]string),
	}
}

func (m *mockUserRepo) put(user domain.User) {
	m.usersByID[user.ID] = user
	m.usersByAuth[user.Auth0ID] = user.ID
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByAuth0ID(ctx context.Context, auth0ID string) (domain.User, error) {
	id, ok := m.usersByAuth[auth0ID]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) FindByAuth0IDOrEmail(ctx context.Context, auth0ID, email string) (domain.User, error) {
	if id, ok := m.usersByAuth[auth0ID]; ok {
		return m.GetByID(ctx, id)
	}
	for _, user := range m.usersByID {
		if email != "" && user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	m.put(user)
	return user, nil
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) (domain.User, error) {
	if _, ok := m.usersByID[user.ID]; !ok {
		return domain.User{}, repository.ErrNotFound
	}
	m.put(user)
	m.updates++
	return user, nil
}

func (m *mockUserRepo) UpdateName(_ context.Context, id, name string, at time.Time) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	user.Name = &name
	user.UpdatedAt = at
	m.usersByID[id] = user
	m.updates++
	return user, nil
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, auth0ID string, loginAt, at time.Time) (domain.User, error) {
	id, ok := m.usersByAuth[auth0ID]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	user := m.usersByID[id]
	user.LastLoginAt = &loginAt
	user.UpdatedAt = at
	m.usersByID[id] = user
	m.updates++
	return user, nil
}

func (m *mockUserRepo) UpdateLastSessionActive(_ context.Context, auth0ID string, at time.Time) error {
	id, ok := m.usersByAuth[auth0ID]
	if !ok {
		return repository.ErrNotFound
	}
	user := m.usersByID[id]
	user.LastSessionActiveAt = &at
	m.usersByID[id] = user
	return nil
}

type mockGateway struct {
	profiles  map[string]domain.Auth0User
	getErr    error
	updateErr error
	patches   []domain.Auth0UserUpdate
}

func (m *mockGateway) GetAccessToken(_ context.Context) (string, error) {
	return "token", nil
}

func (m *mockGateway) GetUser(_ context.Context, id string) (domain.Auth0User, error) {
	if m.getErr != nil {
		return domain.Auth0User{}, m.getErr
	}
	profile, ok := m.profiles[id]
	if !ok {
		return domain.Auth0User{}, &auth0.UpstreamError{Op: auth0.OpGetUser, StatusCode: http.StatusNotFound}
	}
	return profile, nil
}

func (m *mockGateway) UpdateUser(_ context.Context, id string, update domain.Auth0UserUpdate) (domain.Auth0User, error) {
	m.patches = append(m.patches, update)
	if m.updateErr != nil {
		return domain.Auth0User{}, m.updateErr
	}
	return domain.Auth0User{UserID: id, Name: update.Name}, nil
}

type staticKeys map[string]*rsa.PublicKey

func (k staticKeys) PublicKey(_ context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := k[kid]
	if !ok {
		return nil, auth0.ErrKeyNotFound
	}
	return key, nil
}

type testEnv struct {
	router  *gin.Engine
	repo    *mockUserRepo
	gateway *mockGateway
	key     *rsa.PrivateKey
}

func newTestEnv(t *testing.T, whitelist []string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	repo := newMockUserRepo()
	gw := &mockGateway{profiles: map[string]domain.Auth0User{}}
	logger := zap.NewNop()

	users := service.NewUserService(logger, repo, gw, domain.NameSyncBestEffort)
	jwtSvc := service.NewJWTService(staticKeys{testKid: &key.PublicKey}, testIssuer, testAudience)
	r := NewRouter(logger, RouterDeps{
		JWT:         jwtSvc,
		Users:       users,
		IPWhitelist: whitelist,
		UserH:       NewUserHandler(logger, users),
		Auth0H:      NewAuth0Handler(logger, users),
	})
	return &testEnv{router: r, repo: repo, gateway: gw, key: key}
}

func (e *testEnv) token(t *testing.T, sub string) string {
	t.Helper()
	now := time.Now()
	claims := service.Claims{
		Scope: "openid profile email",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   sub,
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKid
	signed, err := tok.SignedString(e.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (e *testEnv) seed(id, auth0ID string, verified bool) domain.User {
	name := "John"
	user := domain.User{
		ID:            id,
		Auth0ID:       auth0ID,
		Email:         id + "@example.com",
		Name:          &name,
		EmailVerified: verified,
	}
	e.repo.put(user)
	return user
}

func performRequest(r http.Handler, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func auth0UserFixture(id string) domain.Auth0User {
	return domain.Auth0User{UserID: id, Email: "a@b.com", EmailVerified: true, Name: "A B"}
}
