package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"empires-server/internal/shared/config"
)

type Claims struct {
	EmpireID int    `json:"empire_id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

func getJWTSecret() (string, error) {
	secret := config.GlobalConfig.Auth.JWTSecret
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable is required but not set")
	}
	if len(secret) < 32 {
		return "", fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}
	return secret, nil
}

// GenerateJWT issues the session token carrying the empire identity.
func GenerateJWT(empireID int, userID, name string) (string, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return "", fmt.Errorf("cannot generate JWT: %w", err)
	}

	claims := Claims{
		EmpireID: empireID,
		UserID:   userID,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(config.GlobalConfig.Auth.TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   fmt.Sprintf("empire_%d", empireID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateJWT(tokenString string) (*Claims, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return nil, fmt.Errorf("cannot validate JWT: %w", err)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
