package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/pkg/auth"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func testIdentity() auth.Identity {
	return auth.Identity{
		ID:    uuid.New(),
		Name:  "Laura Gómez",
		Email: "laura@example.com",
		Role:  auth.RoleAdmin,
	}
}

func TestHMACRoundTrip(t *testing.T) {
	want := testIdentity()
	token, err := auth.SignHMAC(secret, want, time.Minute)
	if err != nil {
		t.Fatalf("SignHMAC() error = %v", err)
	}

	got, err := auth.NewHMAC(secret).Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != want {
		t.Errorf("identity = %+v, want %+v", got, want)
	}
	if !got.IsAdmin() {
		t.Error("IsAdmin() should be true")
	}
}

func TestHMACRejects(t *testing.T) {
	id := testIdentity()
	good, _ := auth.SignHMAC(secret, id, time.Minute)
	expired, _ := auth.SignHMAC(secret, id, -time.Minute)
	otherKey, _ := auth.SignHMAC([]byte("ffffffffffffffffffffffffffffffff"), id, time.Minute)

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "not-a-uuid",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(secret)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong key", otherKey},
		{"tampered", good[:len(good)-2] + "xx"},
		{"bad subject", badSubject},
		{"garbage", "abc.def.ghi"},
	}

	v := auth.NewHMAC(secret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			if !errors.Is(err, auth.ErrInvalidToken) {
				t.Errorf("error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestHMACDefaultsRole(t *testing.T) {
	id := testIdentity()
	id.Role = ""
	token, _ := auth.SignHMAC(secret, id, time.Minute)

	got, err := auth.NewHMAC(secret).Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.Role != auth.RoleUser {
		t.Errorf("role = %q, want %q", got.Role, auth.RoleUser)
	}
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	id := testIdentity()
	token, _ := auth.SignHMAC(secret, id, time.Minute)

	var seen auth.Identity
	handler := auth.Middleware(auth.NewHMAC(secret), logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusOK},
		{"lowercase scheme", "bearer " + token, "", http.StatusOK},
		{"query token", "", "?access_token=" + token, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = auth.Identity{}
			req := httptest.NewRequest("GET", "/documents"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && seen.ID != id.ID {
				t.Errorf("identity in context = %+v", seen)
			}
		})
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := auth.FromContext(context.Background()); ok {
		t.Error("FromContext() on empty context should report false")
	}
}

type oidcServer struct {
	*httptest.Server
	key *rsa.PrivateKey
}

func newOIDCServer(t *testing.T) *oidcServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	s := &oidcServer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                s.URL,
			"authorization_endpoint":                s.URL + "/auth",
			"token_endpoint":                        s.URL + "/token",
			"jwks_uri":                              s.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": "test",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *oidcServer) sign(t *testing.T, audience string, id auth.Identity) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   s.URL,
		"aud":   audience,
		"sub":   id.ID.String(),
		"name":  id.Name,
		"email": id.Email,
		"role":  id.Role,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
	token.Header["kid"] = "test"
	raw, err := token.SignedString(s.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestOIDCVerify(t *testing.T) {
	srv := newOIDCServer(t)
	ctx := context.Background()

	v, err := auth.New(ctx, &auth.Config{Issuer: srv.URL, ClientID: "docuprex"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := testIdentity()
	got, err := v.Verify(ctx, srv.sign(t, "docuprex", want))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != want {
		t.Errorf("identity = %+v, want %+v", got, want)
	}

	if _, err := v.Verify(ctx, srv.sign(t, "someone-else", want)); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("wrong audience error = %v, want ErrInvalidToken", err)
	}
}

func TestOIDCDiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := auth.NewOIDC(context.Background(), srv.URL, "docuprex")
	if err == nil || !strings.Contains(err.Error(), "oidc discovery") {
		t.Errorf("error = %v, want discovery failure", err)
	}
}

func TestConfigFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     auth.Config
		wantErr string
	}{
		{"hmac ok", auth.Config{Secret: string(secret)}, ""},
		{"short secret", auth.Config{Secret: "short"}, "at least 32 bytes"},
		{"oidc ok", auth.Config{Issuer: "https://login.example.com", ClientID: "docuprex"}, ""},
		{"oidc without client", auth.Config{Issuer: "https://login.example.com"}, "client_id required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFinalizeEnv(t *testing.T) {
	t.Setenv("TEST_AUTH_ISSUER", "https://login.example.com")
	t.Setenv("TEST_AUTH_CLIENT_ID", "docuprex")

	cfg := auth.Config{}
	err := cfg.Finalize(&auth.Env{Issuer: "TEST_AUTH_ISSUER", ClientID: "TEST_AUTH_CLIENT_ID"})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !cfg.OIDC() || cfg.ClientID != "docuprex" {
		t.Errorf("cfg = %+v", cfg)
	}
}
