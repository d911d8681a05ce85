package utils

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RoomTokenClaims are the claims carried by a room access token minted by the
// matchmaking side of the platform.
type RoomTokenClaims struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	jwt.RegisteredClaims
}

// ValidateRoomToken parses and verifies a room access token.
func ValidateRoomToken(secret []byte, tokenString string) (*RoomTokenClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token missing")
	}

	token, err := jwt.ParseWithClaims(tokenString, &RoomTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*RoomTokenClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}

// MintRoomToken signs a room access token. Used by tests and local tooling;
// production tokens come from the matchmaking service.
func MintRoomToken(secret []byte, claims *RoomTokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
