package auth0

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func jwkFor(kid string, pub *rsa.PublicKey) jwk {
	return jwk{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func TestKeySet_PublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fetches.Add(1)
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{
			jwkFor("kid-1", &key.PublicKey),
			{Kty: "EC", Kid: "ignored"},
		}})
	}))
	defer srv.Close()

	set := NewKeySet(srv.URL+"/", time.Second, nil)

	pub, err := set.PublicKey(context.Background(), "kid-1")
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		t.Fatalf("unexpected public key")
	}

	if _, err := set.PublicKey(context.Background(), "kid-1"); err != nil {
		t.Fatalf("cached public key: %v", err)
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}

	_, err = set.PublicKey(context.Background(), "unknown")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("expected unknown kid not to refetch right away, got %d", n)
	}
}

func TestKeySet_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	set := NewKeySet(srv.URL, time.Second, nil)
	_, err := set.PublicKey(context.Background(), "kid-1")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected upstream 503, got %v", err)
	}
}

func TestKeySet_SkipsMalformedKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{
			{Kty: "RSA", Kid: "broken", Use: "sig", N: "!!!", E: "AQAB"},
			{Kty: "RSA", Kid: "empty", Use: "sig"},
			jwkFor("kid-1", &key.PublicKey),
		}})
	}))
	defer srv.Close()

	set := NewKeySet(srv.URL, time.Second, zap.NewNop())

	pub, err := set.PublicKey(context.Background(), "kid-1")
	if err != nil {
		t.Fatalf("expected valid key despite malformed sibling: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 {
		t.Fatalf("unexpected public key")
	}
	if _, err := set.PublicKey(context.Background(), "broken"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected malformed kid to be absent, got %v", err)
	}
}
