package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/common"
)

// TokenKind distinguishes the two token types this service mints.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the signed claim set carried by both token kinds:
// sub (username), user_id, exp, and type.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	TokenType string `json:"type"`
}

// Codec signs and verifies compact claim sets. It is immutable and safe for
// concurrent use; one instance is built at startup from config.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
}

// NewCodec builds a Codec for the given HMAC algorithm (HS256/HS384/HS512).
// Empty secrets and non-HMAC algorithms are rejected so a misconfigured
// deployment fails at startup, not on the first request.
func NewCodec(secret string, algorithm string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: signing secret must not be empty", common.ErrorValidation)
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("%w: unknown signing algorithm %q", common.ErrorValidation, algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: algorithm %q is not an HMAC method", common.ErrorValidation, algorithm)
	}
	return &Codec{secret: []byte(secret), method: method}, nil
}

// Encode signs a claim set for the given identity, injecting exp and type.
// Every token carries a fresh jti: iat/exp have second granularity, and two
// otherwise-identical refresh tokens minted within the same second would
// collide on their stored hash, letting a consumed token resurrect itself
// through the upsert.
func (c *Codec) Encode(username, userID string, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(c.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		TokenType: string(kind),
	})
	return token.SignedString(c.secret)
}

// Decode verifies a token and returns its claims. Bad signatures, malformed
// structure, wrong signing method, and past expiry all yield
// common.ErrInvalidToken; expiry additionally matches common.ErrTokenExpired.
// Decode does not interpret the type claim — callers must check it.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
