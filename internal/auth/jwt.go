// Package auth issues and verifies the session tokens handed out on login.
// Tokens are HS256 JWTs signed with LM_JWT_SECRET and carry the user's role so
// role checks need no Record Source round trip.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/muazhazali/lepakmasjid/internal/models"
)

const (
	secretEnv  = "LM_JWT_SECRET"
	issuer     = "lepakmasjid"
	defaultTTL = 24 * time.Hour
)

var (
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims is the token payload.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token carries the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

func isDevMode() bool {
	devMode := os.Getenv("LM_DEV_MODE")
	return devMode == "true" || devMode == "1" || os.Getenv("GIN_MODE") == "debug"
}

func generateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ValidateJWTSecret checks that LM_JWT_SECRET is configured. Outside dev mode a
// missing secret is an error; in dev mode a random secret is generated, so
// sessions do not survive a restart. Call it at startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv(secretEnv)
		if secret == "" {
			if isDevMode() {
				jwtSecret = generateRandomSecret()
				slog.Warn(secretEnv + " not set, using a generated secret for development")
				return
			}
			jwtSecretErr = errors.New(secretEnv + " is required outside dev mode; generate one with: openssl rand -hex 32")
			return
		}
		if len(secret) < 32 {
			slog.Warn(secretEnv + " is shorter than the recommended 32 characters")
		}
		jwtSecret = secret
	})
	return jwtSecretErr
}

// GetJWTSecret returns the validated secret and panics when none is available.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateJWT signs a token for a user. A zero expiresIn selects the default
// lifetime of one day.
func GenerateJWT(userID, email, role string, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = defaultTTL
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(GetJWTSecret()))
}

// ValidateJWT parses and verifies a token.
func ValidateJWT(tokenString string) (*Claims, error) {
	secret := GetJWTSecret()
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Issuer signs session tokens with a fixed lifetime.
type Issuer struct {
	TTL time.Duration
}

// Issue signs a token for u and returns it with its expiry.
func (i Issuer) Issue(u models.User) (string, time.Time, error) {
	ttl := i.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	expires := time.Now().Add(ttl)
	token, err := GenerateJWT(u.ID, u.Email, u.Role, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}
