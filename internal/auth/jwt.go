package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avdev42/bankcards/internal/models"
)

// ErrInvalidToken covers every token rejection: bad signature, wrong
// algorithm, expiry, missing claims.
var ErrInvalidToken = errors.New("invalid token")

// Manager issues and verifies HS256 access tokens carrying the caller
// identity.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Generate returns a signed access token for the identity.
func (m *Manager) Generate(id models.Identity) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatInt(id.OwnerID, 10),
		"email": id.Email,
		"role":  string(id.Role),
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(now.Add(m.ttl)),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and extracts the caller identity.
func (m *Manager) Parse(tokenString string) (models.Identity, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
	if err != nil || !tok.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return models.Identity{}, ErrInvalidToken
	}
	ownerID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return models.Identity{}, ErrInvalidToken
	}
	if r := models.Role(role); r != models.RoleUser && r != models.RoleAdmin {
		return models.Identity{}, ErrInvalidToken
	}

	return models.Identity{OwnerID: ownerID, Email: email, Role: models.Role(role)}, nil
}
