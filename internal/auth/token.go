package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token fails signature, expiry, or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims embeds the registered JWT claims; Subject carries the user id.
// Access tokens additionally carry the user's email.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// TokenManager issues and verifies the signed access and refresh JWTs.
// The two token families use independent secrets and lifetimes so a leaked
// access secret never extends a session.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager creates a manager with the provided secrets, issuer, and lifetimes.
func NewTokenManager(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// GenerateAccess issues a short-lived access token for the user.
func (t *TokenManager) GenerateAccess(userID, email string) (string, error) {
	return t.sign(t.accessSecret, t.accessTTL, userID, email)
}

// GenerateRefresh issues a refresh token; its payload carries only the user id.
func (t *TokenManager) GenerateRefresh(userID string) (string, error) {
	return t.sign(t.refreshSecret, t.refreshTTL, userID, "")
}

// ParseAccess verifies an access token and returns its claims.
func (t *TokenManager) ParseAccess(token string) (*Claims, error) {
	return t.parse(token, t.accessSecret)
}

// ParseRefresh verifies a refresh token and returns its claims.
func (t *TokenManager) ParseRefresh(token string) (*Claims, error) {
	return t.parse(token, t.refreshSecret)
}

func (t *TokenManager) sign(secret []byte, ttl time.Duration, userID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes every issued token unique: timestamps alone
			// have one-second precision, so two tokens minted in the same
			// second would otherwise be byte-identical and rotation could
			// hand back the token it was meant to supersede.
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (t *TokenManager) parse(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
