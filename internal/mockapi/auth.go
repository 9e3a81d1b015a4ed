package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for rejected tokens and passwords
var ErrInvalidCredentials = errors.New("invalid credentials")

// DefaultTokenTTL is the lifetime of issued tokens when none is configured
const DefaultTokenTTL = time.Hour

// AuthOptions configures an Authenticator
type AuthOptions struct {
	// Secret signs and verifies HS256 bearer tokens. Empty disables tokens.
	Secret string
	// TokenTTL defaults to DefaultTokenTTL
	TokenTTL time.Duration
	// Users maps basic auth user names to bcrypt password hashes
	Users map[string]string
}

// Authenticator guards the backend with bearer tokens and basic
// credentials, the two schemes REST backends of this kind accept
type Authenticator struct {
	secret   []byte
	tokenTTL time.Duration
	users    map[string]string
}

// NewAuthenticator creates an authenticator. It returns nil when opts
// enables no scheme, which leaves the backend open.
func NewAuthenticator(opts AuthOptions) *Authenticator {
	if opts.Secret == "" && len(opts.Users) == 0 {
		return nil
	}
	a := &Authenticator{
		secret:   []byte(opts.Secret),
		tokenTTL: opts.TokenTTL,
		users:    opts.Users,
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = DefaultTokenTTL
	}
	return a
}

// GenerateToken issues a signed token for subject
func (a *Authenticator) GenerateToken(subject string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("no token secret configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateToken checks a token and returns its subject
func (a *Authenticator) ValidateToken(token string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrInvalidCredentials
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidCredentials
	}
	return claims.Subject, nil
}

// CheckPassword verifies basic credentials against the configured hashes
func (a *Authenticator) CheckPassword(user, password string) bool {
	hash, ok := a.users[user]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword hashes password for the users section of the configuration.
// bcrypt rejects passwords longer than 72 bytes.
func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", fmt.Errorf("password exceeds maximum length of 72 bytes")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (a *Authenticator) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		_, err := a.ValidateToken(token)
		return err == nil
	}
	if user, password, ok := r.BasicAuth(); ok {
		return a.CheckPassword(user, password)
	}
	return false
}

// middleware rejects requests without valid credentials
func (a *Authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="apy mock"`)
			renderError(w, http.StatusUnauthorized, "Please provide proper credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}
