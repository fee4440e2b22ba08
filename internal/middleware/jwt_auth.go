package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/astrafabric/monitor/internal/api"
)

// CustomerClaims are issued by the calling layer for one customer
type CustomerClaims struct {
	CustomerID string `json:"customer_id"`
	jwt.RegisteredClaims
}

// JWTAuthConfig holds JWT verification configuration
type JWTAuthConfig struct {
	// Secret is the HMAC key shared with the calling layer. Empty disables
	// verification.
	Secret string

	// Issuer, when set, must match the token's iss claim
	Issuer string

	// SkipPaths are paths that don't require a token. A trailing "*"
	// matches by prefix.
	SkipPaths []string
}

// JWTAuthMiddleware verifies bearer tokens and exposes the customer_id claim
type JWTAuthMiddleware struct {
	config  JWTAuthConfig
	skipMap map[string]bool
}

type customerContextKey struct{}

// ErrMissingCustomer is returned for tokens without a customer_id claim
var ErrMissingCustomer = errors.New("token has no customer_id claim")

// NewJWTAuthMiddleware creates a new JWT middleware
func NewJWTAuthMiddleware(config JWTAuthConfig) *JWTAuthMiddleware {
	m := &JWTAuthMiddleware{
		config:  config,
		skipMap: make(map[string]bool),
	}
	for _, path := range config.SkipPaths {
		m.skipMap[path] = true
	}
	return m
}

// Enabled reports whether tokens are verified
func (m *JWTAuthMiddleware) Enabled() bool {
	return m.config.Secret != ""
}

// GenerateToken signs a token for a customer
func (m *JWTAuthMiddleware) GenerateToken(customerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := CustomerClaims{
		CustomerID: customerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// ValidateToken parses and verifies a token and returns its claims
func (m *JWTAuthMiddleware) ValidateToken(tokenString string) (*CustomerClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(m.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomerClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.CustomerID == "" {
		return nil, ErrMissingCustomer
	}
	return claims, nil
}

// Wrap wraps an http.Handler with token verification
func (m *JWTAuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || m.shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			unauthorized(w, "Missing authentication token")
			return
		}

		claims, err := m.ValidateToken(tokenString)
		if err != nil {
			log.Printf("JWTAuthMiddleware: Invalid token from %s: %v", r.RemoteAddr, err)
			unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), customerContextKey{}, claims.CustomerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CustomerFromContext returns the verified customer ID of the request
func CustomerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(customerContextKey{}).(string)
	return id, ok && id != ""
}

func (m *JWTAuthMiddleware) shouldSkipAuth(path string) bool {
	if m.skipMap[path] {
		return true
	}
	for skipPath := range m.skipMap {
		if prefix, ok := strings.CutSuffix(skipPath, "*"); ok && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// extractToken reads a Bearer token, falling back to the token query
// parameter that browsers use for websocket upgrades.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="API"`)
	api.RespondError(w, http.StatusUnauthorized, message)
}
