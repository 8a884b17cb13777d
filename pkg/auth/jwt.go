package auth

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer issues and validates the HS256 API tokens that carry a
// Credential across the HTTP boundary.
type TokenIssuer struct {
	secret []byte
	issuer string
}

// NewTokenIssuer creates a token issuer with the shared HMAC secret.
func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}, nil
}

type claims struct {
	Role  string `json:"role"`
	Actor string `json:"actor,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for the given credential.
func (t *TokenIssuer) Issue(cred Credential, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Role:  string(cred.Role),
		Actor: cred.Actor.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(t.secret)
}

// Validate parses and verifies a token, returning the carried credential.
func (t *TokenIssuer) Validate(tokenString string) (Credential, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Credential{}, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return Credential{}, fmt.Errorf("invalid token")
	}

	switch Role(c.Role) {
	case RoleAdmin, RoleKeeper, RoleBridge, RoleUser:
	default:
		return Credential{}, fmt.Errorf("unknown role %q", c.Role)
	}

	cred := Credential{Role: Role(c.Role)}
	if c.Actor != "" {
		if !common.IsHexAddress(c.Actor) {
			return Credential{}, fmt.Errorf("malformed actor address %q", c.Actor)
		}
		cred.Actor = common.HexToAddress(c.Actor)
	}
	return cred, nil
}
