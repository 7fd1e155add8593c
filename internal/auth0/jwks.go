package auth0

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrKeyNotFound = errors.New("signing key not found")

const minRefreshInterval = time.Minute

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet resuelve las claves publicas del tenant publicadas en /.well-known/jwks.json.
type KeySet struct {
	url    string
	client *http.Client
	ttl    time.Duration
	logger *zap.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewKeySet(issuerURL string, timeout time.Duration, logger *zap.Logger) *KeySet {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeySet{
		url:    strings.TrimRight(issuerURL, "/") + "/.well-known/jwks.json",
		client: &http.Client{Timeout: timeout},
		ttl:    time.Hour,
		logger: logger,
	}
}

// PublicKey devuelve la clave para kid; un kid desconocido fuerza una recarga.
func (s *KeySet) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	fresh := s.keys != nil && time.Since(s.fetchedAt) < s.ttl
	key, ok := s.keys[kid]
	s.mu.RUnlock()
	if fresh && ok {
		return key, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys != nil && time.Since(s.fetchedAt) < s.ttl {
		if key, ok := s.keys[kid]; ok {
			return key, nil
		}
		if time.Since(s.fetchedAt) < minRefreshInterval {
			return nil, fmt.Errorf("%w: kid=%s", ErrKeyNotFound, kid)
		}
	}
	keys, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.keys = keys
	s.fetchedAt = time.Now()

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: kid=%s", ErrKeyNotFound, kid)
	}
	return key, nil
}

func (s *KeySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &UpstreamError{Op: OpFetchJWKS, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := parseRSAPublicKey(k)
		if err != nil {
			// Una clave rota no invalida el resto del conjunto.
			s.logger.Warn("skipping malformed jwk", zap.String("kid", k.Kid), zap.Error(err))
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func parseRSAPublicKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus for kid %s: %w", k.Kid, err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent for kid %s: %w", k.Kid, err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 || len(eBytes) > 4 {
		return nil, fmt.Errorf("invalid rsa key for kid %s", k.Kid)
	}
	e := int(new(big.Int).SetBytes(eBytes).Int64())
	if e < 2 {
		return nil, fmt.Errorf("invalid rsa exponent for kid %s", k.Kid)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
