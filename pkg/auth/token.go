package auth

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/webcli/webcli/pkg/models"
)

// Claims represents JWT claims
type Claims struct {
	Email           string `json:"email"`
	PasswordVersion int    `json:"password_version"`
	UUID            string `json:"uuid"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access tokens with an RSA key pair.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiration time.Duration
	issuer     string
}

// NewTokenService creates a new token service from PEM-encoded RSA keys.
func NewTokenService(privateKeyPEM, publicKeyPEM []byte, expiration time.Duration) (*TokenService, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		expiration: expiration,
		issuer:     "webcli",
	}, nil
}

// NewTokenServiceFromFiles creates a token service from PEM key files.
func NewTokenServiceFromFiles(privateKeyPath, publicKeyPath string, expiration time.Duration) (*TokenService, error) {
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	publicPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return NewTokenService(privatePEM, publicPEM, expiration)
}

// GenerateToken generates a signed access token for a user. The token carries
// the user's password version so a password change invalidates every token
// issued before it.
func (s *TokenService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:           user.Email,
		PasswordVersion: user.PasswordVersion,
		UUID:            uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}

// ValidateToken validates a token and returns its claims.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
