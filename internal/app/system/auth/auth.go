package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingToken = errors.New("missing bearer token")
)

/*─────────────────────────────────────────────────────────────────────────────*
| Identity                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// Identity is the verified caller, taken from the identity provider's token.
// UserID is the token subject and doubles as the profile id.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Claims are the token claims we read. Email and name are optional.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type ctxKey string

const identityKey ctxKey = "identity"

// CurrentIdentity returns the caller & "found?" flag.
func CurrentIdentity(r *http.Request) (*Identity, bool) {
	id, ok := r.Context().Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// WithTestIdentity injects id directly, bypassing token verification.
func WithTestIdentity(r *http.Request, id *Identity) *http.Request {
	return withIdentity(r, id)
}

func withIdentity(r *http.Request, id *Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), identityKey, id))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Verifier                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// Verifier validates bearer tokens issued by the identity provider. Tokens
// are HS256 when a shared secret is configured, RS256 when a public key is.
type Verifier struct {
	secret   []byte
	pubKey   *rsa.PublicKey
	issuer   string
	audience string
	leeway   time.Duration
	log      *zap.Logger

	// OnReject, when set, is called for every request whose bearer token is
	// rejected by LoadIdentity.
	OnReject func(r *http.Request, err error)
}

// VerifierConfig selects the signing key and the claims that must match.
// Issuer and Audience are checked only when non-empty.
type VerifierConfig struct {
	HMACSecret   string
	PublicKeyPEM []byte
	Issuer       string
	Audience     string
}

// NewVerifier builds an HS256 Verifier.
func NewVerifier(secret, issuer, audience string, logger *zap.Logger) (*Verifier, error) {
	return NewVerifierFromConfig(VerifierConfig{HMACSecret: secret, Issuer: issuer, Audience: audience}, logger)
}

// NewVerifierFromConfig builds a Verifier. A public key takes precedence over a secret.
// A nil logger discards output.
func NewVerifierFromConfig(cfg VerifierConfig, logger *zap.Logger) (*Verifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Verifier{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   30 * time.Second,
		log:      logger,
	}
	if len(cfg.PublicKeyPEM) > 0 {
		key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse identity provider public key: %w", err)
		}
		v.pubKey = key
		return v, nil
	}
	if cfg.HMACSecret == "" {
		return nil, fmt.Errorf("jwt secret is empty; provide ≥32 random chars")
	}
	if len(cfg.HMACSecret) < 32 {
		logger.Warn("jwt secret is short; 32+ chars recommended",
			zap.Int("length", len(cfg.HMACSecret)))
	}
	v.secret = []byte(cfg.HMACSecret)
	return v, nil
}

// Verify parses and validates tokenString and returns the caller identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	method := jwt.SigningMethodHS256.Alg()
	if v.pubKey != nil {
		method = jwt.SigningMethodRS256.Alg()
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if v.pubKey != nil {
			return v.pubKey, nil
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{
		UserID: strings.TrimSpace(claims.Subject),
		Email:  normalize.Email(claims.Email),
		Name:   normalize.Name(claims.Name),
	}, nil
}

// Sign issues an HS256 token for id that expires after ttl. Used by local
// tooling and tests; production tokens come from the identity provider.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	if v.secret == nil {
		return "", errors.New("signing requires an HMAC secret")
	}
	now := time.Now()
	claims := &Claims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadIdentity injects the caller into context when a valid bearer token is
// present. Requests without a token pass through unchanged; requests with a
// bad token are rejected with 401.
func (v *Verifier) LoadIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if errors.Is(err, ErrMissingToken) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			v.reject(w, r, err)
			return
		}

		id, err := v.Verify(raw)
		if err != nil {
			v.log.Debug("bearer token rejected",
				zap.Error(err),
				zap.String("path", r.URL.Path))
			v.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, withIdentity(r, id))
	})
}

// RequireSignedIn ensures there is an identity in context (set by LoadIdentity).
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentIdentity(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		unauthorized(w, ErrMissingToken)
	})
}

// helpers

func (v *Verifier) reject(w http.ResponseWriter, r *http.Request, err error) {
	if v.OnReject != nil {
		v.OnReject(r, err)
	}
	unauthorized(w, err)
}

func bearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="excelhub"`)
	httpjson.Error(w, http.StatusUnauthorized, httpjson.CodeUnauthorized, err.Error())
}
