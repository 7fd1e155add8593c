package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"user-sync/internal/domain"
)

// ErrUpdateNotAllowed indica que Auth0 no acepta cambios de perfil para esa identidad.
var ErrUpdateNotAllowed = errors.New("auth0 user data cannot be updated")

// Operaciones que pueden aparecer en UpstreamError.Op.
const (
	OpTokenExchange = "token exchange"
	OpFetchJWKS     = "fetch jwks"
	OpGetUser       = "get user"
	OpUpdateUser    = "update user"
)

// UpstreamError describe una respuesta no exitosa de Auth0.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("auth0 %s: status=%d", e.Op, e.StatusCode)
}

// ClientFacing indica si el rechazo se debe a la peticion del usuario y puede
// devolverse tal cual. Los fallos de credenciales del servicio no lo son.
func (e *UpstreamError) ClientFacing() bool {
	if e.Op != OpGetUser && e.Op != OpUpdateUser {
		return false
	}
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusNotFound
}

// Gateway define las operaciones contra la Management API de Auth0.
type Gateway interface {
	GetAccessToken(ctx context.Context) (string, error)
	GetUser(ctx context.Context, userID string) (domain.Auth0User, error)
	UpdateUser(ctx context.Context, userID string, patch domain.Auth0UserUpdate) (domain.Auth0User, error)
}

// Options agrupa la configuracion del tenant.
type Options struct {
	IssuerURL    string
	Audience     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client implementa Gateway sobre HTTP.
type Client struct {
	baseURL string
	creds   clientcredentials.Config
	key     string
	cache   TokenCache
	client  *http.Client
	logger  *zap.Logger
	tracer  trace.Tracer
	flight  singleflight.Group
}

// NewClient construye un cliente apuntando al tenant configurado.
func NewClient(opts Options, cache TokenCache, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewMemoryTokenCache()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.IssuerURL, "/") + "/"
	return &Client{
		baseURL: baseURL,
		creds: clientcredentials.Config{
			ClientID:       opts.ClientID,
			ClientSecret:   opts.ClientSecret,
			TokenURL:       baseURL + "oauth/token",
			EndpointParams: url.Values{"audience": {opts.Audience}},
			AuthStyle:      oauth2.AuthStyleInParams,
		},
		key:    CacheKey(opts.ClientID, opts.ClientSecret, opts.Audience),
		cache:  cache,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger,
		tracer: otel.Tracer("user-sync/auth0"),
	}
}

// GetAccessToken devuelve un token M2M vigente, pidiendo uno nuevo si la cache no lo tiene.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	ctx, span := c.tracer.Start(ctx, "auth0.get_access_token")
	defer span.End()

	token, ok, err := c.cache.Get(ctx, c.key)
	if err != nil {
		c.logger.Warn("auth0 token cache read failed", zap.Error(err))
	}
	if ok {
		span.SetAttributes(attribute.Bool("auth0.token_cached", true))
		return token, nil
	}

	// El intercambio es compartido: no depende de la cancelacion de quien lo inicio,
	// y cada llamador deja de esperar cuando vence su propio contexto.
	ch := c.flight.DoChan(c.key, func() (any, error) {
		return c.exchangeToken(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		recordError(span, ctx.Err())
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logger.Error("auth0 get access token failed", zap.Error(res.Err))
			recordError(span, res.Err)
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) exchangeToken(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	tok, err := c.creds.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", &UpstreamError{
				Op:         OpTokenExchange,
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       string(retrieveErr.Body),
			}
		}
		return "", fmt.Errorf("auth0 token exchange: %w", err)
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 && !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
	}
	if err := c.cache.Set(ctx, c.key, tok.AccessToken, ttl); err != nil {
		c.logger.Warn("auth0 token cache write failed", zap.Error(err))
	}
	return tok.AccessToken, nil
}

// GetUser obtiene el perfil remoto de un usuario.
func (c *Client) GetUser(ctx context.Context, userID string) (domain.Auth0User, error) {
	ctx, span := c.tracer.Start(ctx, "auth0.get_user", trace.WithAttributes(attribute.String("auth0.user_id", userID)))
	defer span.End()

	var user domain.Auth0User
	if err := c.do(ctx, http.MethodGet, OpGetUser, userPath(userID), nil, &user); err != nil {
		c.logger.Error("auth0 get user failed", zap.String("user_id", userID), zap.Error(err))
		recordError(span, err)
		return domain.Auth0User{}, err
	}
	return user, nil
}

// UpdateUser aplica un PATCH parcial sobre el usuario remoto.
func (c *Client) UpdateUser(ctx context.Context, userID string, patch domain.Auth0UserUpdate) (domain.Auth0User, error) {
	ctx, span := c.tracer.Start(ctx, "auth0.update_user", trace.WithAttributes(attribute.String("auth0.user_id", userID)))
	defer span.End()

	if !CanUpdateUserData(userID) {
		recordError(span, ErrUpdateNotAllowed)
		return domain.Auth0User{}, ErrUpdateNotAllowed
	}

	var user domain.Auth0User
	if err := c.do(ctx, http.MethodPatch, OpUpdateUser, userPath(userID), patch, &user); err != nil {
		c.logger.Error("auth0 update user failed", zap.String("user_id", userID), zap.Error(err))
		recordError(span, err)
		return domain.Auth0User{}, err
	}
	return user, nil
}

// CanUpdateUserData solo permite identidades de conexion de base de datos de Auth0;
// las sociales pertenecen a su proveedor.
func CanUpdateUserData(userID string) bool {
	return strings.HasPrefix(userID, "auth0|") && len(userID) > len("auth0|")
}

func (c *Client) do(ctx context.Context, method, op, path string, body, out any) error {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func userPath(userID string) string {
	return "api/v2/users/" + url.PathEscape(userID)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
