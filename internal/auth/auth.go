// Package auth provides password hashing, token minting, and the gin
// middleware that guards the board API. The same tokens authenticate
// websocket connections at handshake time.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/flowdeck-dev/flowdeck/internal/store"
	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

var (
	// ErrInvalidToken is returned for missing, malformed, expired, or
	// otherwise unverifiable tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCredentials is returned when login fails. The message is
	// deliberately the same for unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const userContextKey = "flowdeck.user"

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Manager mints and verifies session tokens. Verification resolves the
// token back to a live user record, so deactivated accounts are locked
// out the moment their flag flips.
type Manager struct {
	secret []byte
	ttl    time.Duration
	store  store.BoardStore
}

// NewManager creates a token manager signing with secret, issuing
// tokens valid for ttl.
func NewManager(secret string, ttl time.Duration, s store.BoardStore) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, store: s}
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Mint issues a signed token for a user.
func (m *Manager) Mint(u *schema.User) (string, error) {
	now := time.Now()
	c := claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// Verify parses a token and returns the active user it belongs to.
func (m *Manager) Verify(token string) (*schema.User, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	u, err := m.store.GetUser(c.Subject)
	if err != nil || !u.Active {
		return nil, ErrInvalidToken
	}
	return u, nil
}

// Middleware rejects requests without a valid bearer token and stashes
// the authenticated user in the gin context.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "access token required"})
			return
		}
		u, err := m.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}
		c.Set(userContextKey, u)
		c.Next()
	}
}

// CurrentUser returns the user the middleware authenticated, or nil on
// an unguarded route.
func CurrentUser(c *gin.Context) *schema.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	u, _ := v.(*schema.User)
	return u
}

// bearerToken pulls the credential from the Authorization header, or
// from the token query parameter as websocket handshakes send it.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
