package jwtutil

import (
	"time"

	"task-service/internal/model"
	"task-service/pkg/config"

	"github.com/golang-jwt/jwt/v4"
)

var (
	secret          = []byte("task-service-secret")
	expirationHours = 24
)

// Initialize configures signing key and expiration from config.
func Initialize(cfg *config.JWTConfig) {
	secret = []byte(cfg.SigningKey)
	if cfg.ExpirationHours > 0 {
		expirationHours = cfg.ExpirationHours
	}
}

// PrincipalClaims represents the JWT claims identifying a principal: id,
// role and tenant partition. The claims are authoritative; downstream code
// trusts role and partition key as issued.
type PrincipalClaims struct {
	UserID       uint       `json:"user_id"`
	Email        string     `json:"email"`
	Role         model.Role `json:"role,omitempty"`
	TenantID     uint       `json:"tenant_id,omitempty"`
	PartitionKey string     `json:"partition_key,omitempty"`
	Super        bool       `json:"super,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT for a tenant-partition principal.
func GenerateToken(user *model.User, partitionKey string) (string, error) {
	claims := PrincipalClaims{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		TenantID:     user.TenantID,
		PartitionKey: partitionKey,
		Super:        user.Super,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*PrincipalClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PrincipalClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*PrincipalClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
