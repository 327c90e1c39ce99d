package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is the access-token payload: the registered subject carries the user
// id, and the username rides along for push routing and display.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (s *Service) generateAccessToken(userID, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses and verifies an access token, rejecting anything not
// signed with our HMAC secret.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, reject(ErrUnauthorized, "Invalid or expired token.")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, reject(ErrUnauthorized, "Invalid or expired token.")
	}
	return claims, nil
}
