// Package auth verifies the bearer tokens the news site issues at
// login. The chat relay treats every verification failure the same
// way (the sender stays anonymous), so Verify collapses all invalid
// states into an error.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the token failed verification or carried
// an incomplete payload.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified principal carried by a token.
type Identity struct {
	ID   int64
	Nick string
	Role string
}

// Claims mirrors the payload the site puts in its login tokens.
type Claims struct {
	ID   int64  `json:"id"`
	Nick string `json:"nick"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with the site's shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify validates the token signature and expiry and returns the
// identity it carries. A payload missing any of id, nick, or role is
// invalid even when the signature checks out.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ID == 0 || claims.Nick == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: incomplete payload", ErrInvalidToken)
	}

	return &Identity{
		ID:   claims.ID,
		Nick: claims.Nick,
		Role: claims.Role,
	}, nil
}

// Generate creates a signed token for the given identity. The server
// never issues tokens itself; this exists for tooling and tests.
func (v *Verifier) Generate(id int64, nick, role string, ttl time.Duration) (string, error) {
	claims := &Claims{
		ID:   id,
		Nick: nick,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
