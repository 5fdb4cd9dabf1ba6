package infra

import (
	"errors"
	"fmt"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims é o payload dos tokens assinados aceitos pelo gateway.
type TokenClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// SignedTokens verifica (e emite) tokens JWT HS256.
//
// É a única fonte que conhece expiração: o claim "exp" é obrigatório e um
// token vencido resulta em domain.ErrExpiredToken.
type SignedTokens struct {
	secret []byte
	issuer string
	clock  Clock
}

type SignedTokensOption func(*SignedTokens)

func WithIssuer(iss string) SignedTokensOption {
	return func(s *SignedTokens) { s.issuer = iss }
}

func WithTokenClock(c Clock) SignedTokensOption {
	return func(s *SignedTokens) { s.clock = c }
}

func NewSignedTokens(secret string, opts ...SignedTokensOption) (*SignedTokens, error) {
	if secret == "" {
		return nil, errors.New("signed tokens: secret is required")
	}
	s := &SignedTokens{secret: []byte(secret), issuer: "admission-gateway", clock: SystemClock}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue emite um token para subject com os papéis informados.
func (s *SignedTokens) Issue(subject string, roles []string, ttl time.Duration) (string, error) {
	if subject == "" || len(roles) == 0 {
		return "", errors.New("signed tokens: subject and roles are required")
	}
	now := s.clock.Now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify implementa domain.TokenVerifier.
func (s *SignedTokens) Verify(token string) (domain.Identity, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOpts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrExpiredToken, err)
	case err != nil:
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if claims.Subject == "" || len(claims.Roles) == 0 {
		return domain.Identity{}, fmt.Errorf("%w: missing subject or roles", domain.ErrInvalidToken)
	}
	return domain.Identity{SubjectID: claims.Subject, Roles: claims.Roles}, nil
}
