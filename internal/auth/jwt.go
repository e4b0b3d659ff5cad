package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abhayc-main/next-starter/internal/domain"
	"github.com/abhayc-main/next-starter/pkg/middleware"
)

const issuer = "next-starter"

// SessionClaims is the JWT payload of a session token.
type SessionClaims struct {
	AccountID string  `json:"id,omitempty"`
	Name      *string `json:"name,omitempty"`
	Email     string  `json:"email"`
	Picture   *string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Claims returns the identity projection carried by the token.
func (c *SessionClaims) Claims() domain.Claims {
	return domain.Claims{
		ID:      c.AccountID,
		Name:    c.Name,
		Email:   c.Email,
		Picture: c.Picture,
	}
}

// JWTManager signs and verifies session tokens.
type JWTManager struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewJWTManager creates a JWT manager. Tokens expire maxAge after issuance.
func NewJWTManager(secret string, maxAge time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// MaxAge returns the session lifetime.
func (m *JWTManager) MaxAge() time.Duration {
	return m.maxAge
}

// Issue signs a token carrying claims and returns it with its expiry.
func (m *JWTManager) Issue(claims domain.Claims) (string, time.Time, error) {
	now := m.now().UTC()
	expires := now.Add(m.maxAge)

	sc := &SessionClaims{
		AccountID: claims.ID,
		Name:      claims.Name,
		Email:     claims.Email,
		Picture:   claims.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sc)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates a session token and returns its claims. Any failure wraps
// domain.ErrInvalidSession.
func (m *JWTManager) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", errors.Join(domain.ErrInvalidSession, err))
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidSession
	}
	return claims, nil
}

// Validator adapts Parse to the middleware token validator. Tokens without
// an account id are rejected.
func (m *JWTManager) Validator() middleware.TokenValidator {
	return func(token string) (*middleware.Principal, error) {
		claims, err := m.Parse(token)
		if err != nil {
			return nil, err
		}
		if claims.AccountID == "" {
			return nil, domain.ErrInvalidSession
		}
		return &middleware.Principal{AccountID: claims.AccountID, Email: claims.Email}, nil
	}
}
