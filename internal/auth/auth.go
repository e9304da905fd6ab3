package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns HS256 bearer tokens into authenticated sessions.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// SessionFromHeader parses an Authorization header. An empty header yields ok == false and no error.
func (v *Verifier) SessionFromHeader(header string) (domain.Session, bool, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return domain.Session{}, false, nil
	}

	parts := strings.Fields(raw)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.Session{}, false, fmt.Errorf("%w: format", ErrInvalidToken)
	}

	session, err := v.Session(parts[1])
	if err != nil {
		return domain.Session{}, false, err
	}

	return session, true, nil
}

// Session verifies token and reads the subject and email claims.
func (v *Verifier) Session(token string) (domain.Session, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: claims", ErrInvalidToken)
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return domain.Session{}, fmt.Errorf("%w: sub claim missing", ErrInvalidToken)
	}

	email, _ := claims["email"].(string)

	return domain.Session{
		UserID:      sub,
		Email:       strings.TrimSpace(email),
		BearerToken: token,
	}, nil
}

// Issue signs a token for userID; used by tests and local tooling.
func (v *Verifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("token.SignedString: %w", err)
	}

	return signed, nil
}

// NewGuestSessionID returns a fresh id for a shopper without an account.
func NewGuestSessionID() string {
	return uuid.NewString()
}

// ValidGuestSessionID accepts only ids NewGuestSessionID could have produced.
func ValidGuestSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
