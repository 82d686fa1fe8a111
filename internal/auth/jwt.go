package auth

// AUTHENTICATION FLOW OVERVIEW:
// 1. Client POSTs /auth/register or /auth/login with username + password
// 2. AuthService verifies the credentials and asks TokenService for a JWT
// 3. The response body is {"access_token": "<jwt>"}
// 4. On article mutations the client sends "Authorization: Bearer <jwt>";
//    RequireAuth validates it and puts the Identity in the request context
//
// JWT STRUCTURE (three base64url parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"username":"alice","sub":"42","iat":...,"exp":...,"iss":"articles-api","jti":"..."}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
//
// Verification needs only the secret, no database lookup.

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/articles-api/internal/model"
)

const (
	// DefaultTokenTTL is the access token lifetime when none is configured.
	DefaultTokenTTL = time.Hour

	issuer = "articles-api"

	// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
	MinSecretLength = 16
)

// ErrTokenExpired is returned by Validate for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// Identity is the verified caller behind a request.
type Identity struct {
	ID       int64
	Username string
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. ttl <= 0 means DefaultTokenTTL.
// Generate a production secret with: openssl rand -hex 32
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the JWT payload: the username plus the registered claims. The
// user id travels in "sub" as a decimal string.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Generate signs a token for user that expires after the configured TTL.
func (s *TokenService) Generate(user *model.User) (string, error) {
	return s.GenerateWithDuration(user, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. A negative d
// produces an already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(user *model.User, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
			ID:        xid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate verifies tokenStr and returns the identity it carries.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired (exp is required)
//   - Issuer is "articles-api"
//   - Algorithm is HS256, so an "alg":"none" token is rejected
func (s *TokenService) Validate(tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("auth: token subject %q is not a user id", c.Subject)
	}

	return &Identity{ID: id, Username: c.Username}, nil
}
