package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// TokenTypeAccess is the only token type accepted by the API.
const TokenTypeAccess = "access"

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
	Issuer string
	// Expiry is only used when minting development tokens.
	Expiry time.Duration
}

// Claims issued by the identity provider
type Claims struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTManager validates access tokens signed with the shared secret.
type JWTManager struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(config JWTConfig) *JWTManager {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Expiry == 0 {
		config.Expiry = time.Hour
	}
	return &JWTManager{
		config: config,
		parser: jwt.NewParser(opts...),
	}
}

// GenerateAccessToken mints an access token. The identity provider owns
// issuance in production; this exists for seeding and tests.
func (j *JWTManager) GenerateAccessToken(userID uint, email, name, role string) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:    userID,
		Email:     email,
		Name:      name,
		Role:      role,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.Secret))
}

// ValidateToken validates an access token and returns its claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := j.parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(j.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.UserID == 0 || claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}
