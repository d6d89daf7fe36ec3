package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims (sub, iat, exp) plus the email the
// token was minted for.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenIssuer mints and validates HS256 bearer tokens. Tokens are stateless
// and cannot be revoked before they expire.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clockx.Clock
}

func NewTokenIssuer(secret []byte, ttl time.Duration, clock clockx.Clock) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenIssuer{secret: secret, ttl: ttl, clock: clock}, nil
}

// TTL is the lifetime of minted tokens.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

func (i *TokenIssuer) Mint(userID, email string) (string, error) {
	now := i.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: email,
	})

	return token.SignedString(i.secret)
}

// Validate parses tokenString and reports whether it is a well-formed,
// unexpired HS256 token signed with the issuer's secret.
func (i *TokenIssuer) Validate(tokenString string) (*Claims, bool) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, false
	}

	return claims, true
}
