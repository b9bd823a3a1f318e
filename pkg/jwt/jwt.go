package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the token is malformed or has a bad signature
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token has expired")

	// ErrInvalidTokenType indicates the token is not a service token
	ErrInvalidTokenType = errors.New("invalid token type")
)

// Claims represents the JWT claims for an internal service token
type Claims struct {
	Service   string `json:"service"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service handles minting and validation of internal service tokens used
// between the webhook handler and the booking processors
type Service struct {
	secret      []byte
	tokenExpiry time.Duration
}

// NewService creates a new JWT service
func NewService(secret string, tokenExpiry time.Duration) *Service {
	return &Service{
		secret:      []byte(secret),
		tokenExpiry: tokenExpiry,
	}
}

// GenerateServiceToken generates a short-lived token identifying an internal caller
func (s *Service) GenerateServiceToken(service string) (string, error) {
	now := time.Now()

	claims := Claims{
		Service:   service,
		TokenType: "service",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "villastay-booking",
			Subject:   service,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}

	return signed, nil
}

// ValidateServiceToken validates a service token and returns its claims
func (s *Service) ValidateServiceToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != "service" {
		return nil, ErrInvalidTokenType
	}

	return claims, nil
}
