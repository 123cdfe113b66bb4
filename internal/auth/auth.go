package auth

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/urbanlens/internal/models"
)

var (
	ErrInvalidToken             = errors.New("invalid token")
	ErrExpiredToken             = errors.New("token expired")
	ErrAuthenticationIncomplete = errors.New("authentication incomplete")
)

// idTokenClaims are the OpenID Connect claims read from an identity token
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Service reads identity tokens issued by the sign-in provider
type Service struct {
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

// NewService creates a new identity token service. When audience is set,
// tokens issued for another client are rejected.
func NewService(audience string) *Service {
	return &Service{
		audience: audience,
		parser:   jwt.NewParser(),
		now:      time.Now,
	}
}

// ParseIdentity decodes the claims of an identity token.
//
// The signature is not verified: this client only carries the token as a
// bearer credential and the places API is the party that verifies it.
func (s *Service) ParseIdentity(tokenString string) (*models.Identity, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	var claims idTokenClaims
	if _, _, err := s.parser.ParseUnverified(tokenString, &claims); err != nil {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	if s.audience != "" && !slices.Contains(claims.Audience, s.audience) {
		return nil, ErrInvalidToken
	}

	identity := &models.Identity{
		Subject:       claims.Subject,
		Issuer:        claims.Issuer,
		Audience:      claims.Audience,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	if identity.Expired(s.now()) {
		return nil, ErrExpiredToken
	}

	return identity, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}
