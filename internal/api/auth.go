package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	msgTokenMissing = "Authorization token is missing"
	msgTokenInvalid = "Invalid or expired token"
)

// Claims is the token payload issued by the account service
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

type userIDKey struct{}

// UserID returns the authenticated user stored by the auth middleware
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// Authenticator verifies HS256 bearer tokens
type Authenticator struct {
	secret []byte
	log    zerolog.Logger
}

func NewAuthenticator(secret string, log zerolog.Logger) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is empty")
	}
	return &Authenticator{
		secret: []byte(secret),
		log:    log.With().Str("component", "auth").Logger(),
	}, nil
}

// IssueToken signs a token for userID, valid for ttl. A zero ttl never expires.
func (a *Authenticator) IssueToken(userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now)},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses token and returns its claims
func (a *Authenticator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware rejects requests without a valid "Bearer <token>" header
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, a.log, http.StatusUnauthorized, msgTokenMissing)
			return
		}

		claims, err := a.Verify(token)
		if err != nil {
			a.log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected token")
			writeError(w, a.log, http.StatusUnauthorized, msgTokenInvalid)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken takes the second word of the header
func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
