// Package joinauth verifies the join token a peer presents on its `join`
// signaling request, repurposed from the teacher's user-login JWT service
// into a room-scoped peer-identity verifier (spec.md §6's `from` URL
// parameter/join field).
package joinauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the peer and room a join token was minted for.
type Claims struct {
	PeerID string `json:"peerId"`
	RoomID string `json:"roomId"`
	jwt.RegisteredClaims
}

// Verifier validates join tokens signed with a shared secret
// (config.Auth.JoinTokenSecret).
type Verifier struct {
	secret []byte
}

// New builds a Verifier around secret. An empty secret disables
// verification (Verify always succeeds with empty Claims), matching
// spec.md §6's note that join-token auth is a deployment-specific add-on
// rather than a core requirement.
func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Mint signs a join token for peerID/roomID, valid for ttl. Used by the
// demo host binary to hand peers a token out of band.
func (v *Verifier) Mint(peerID, roomID string, ttl time.Duration) (string, error) {
	claims := Claims{
		PeerID: peerID,
		RoomID: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   peerID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing join token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates tokenString, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if len(v.secret) == 0 {
		return &Claims{}, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing join token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid join token claims")
	}
	return claims, nil
}
