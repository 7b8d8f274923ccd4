package api

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthManager handles JWT authentication
type AuthManager struct {
	jwtSecret []byte
}

// NewAuthManager creates a new auth manager
func NewAuthManager(jwtSecret string) *AuthManager {
	return &AuthManager{
		jwtSecret: []byte(jwtSecret),
	}
}

// ValidateToken validates a JWT token and returns the shop domain it was
// issued for.
func (a *AuthManager) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	if shop, ok := claims["shop"].(string); ok && shop != "" {
		return shop, nil
	}
	// Session tokens carry the shop as the "dest" URL.
	if dest, ok := claims["dest"].(string); ok && dest != "" {
		return strings.TrimPrefix(dest, "https://"), nil
	}
	return "", fmt.Errorf("shop not found in token")
}

// ExtractTokenFromHeader extracts JWT token from Authorization header
func (a *AuthManager) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}

	// Support both "Bearer <token>" and just "<token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 {
		if strings.ToLower(parts[0]) != "bearer" {
			return "", fmt.Errorf("invalid authorization header format")
		}
		return parts[1], nil
	} else if len(parts) == 1 {
		return parts[0], nil
	}

	return "", fmt.Errorf("invalid authorization header format")
}
