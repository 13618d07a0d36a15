// Package oauthstate encodes the user identity into the OAuth "state"
// parameter on the way out to Google and recovers it on the callback.
//
// Two codecs are provided. Plain is the compatible default: the state is the
// standard base64 encoding of {"userId":"..."} and carries no integrity
// protection. Signed wraps the same claim in an HS256 JWT with an expiry, so a
// forged or replayed-late state is rejected.
package oauthstate

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidState is returned when the state cannot be decoded or verified.
	ErrInvalidState = errors.New("invalid state")

	// ErrExpiredState is returned when a signed state is past its expiry.
	ErrExpiredState = errors.New("state expired")
)

// Codec converts between a user id and an opaque state string.
type Codec interface {
	Encode(userID string) (string, error)
	Decode(state string) (string, error)
}

// payload is the wire shape of the unsigned state.
type payload struct {
	UserID string `json:"userId"`
}

// Plain is the unsigned base64 JSON codec.
type Plain struct{}

// Encode returns base64({"userId":userID}).
func (Plain) Encode(userID string) (string, error) {
	raw, err := json.Marshal(payload{UserID: userID})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode extracts the user id. Both padded and unpadded input are accepted.
func (Plain) Decode(state string) (string, error) {
	if state == "" {
		return "", ErrInvalidState
	}
	raw, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(state)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if p.UserID == "" {
		return "", fmt.Errorf("%w: missing userId", ErrInvalidState)
	}
	return p.UserID, nil
}

// claims is the signed state body.
type claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Signed issues HS256 tokens that expire after TTL.
type Signed struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigned returns a Signed codec. key must not be empty.
func NewSigned(key []byte, ttl time.Duration) (*Signed, error) {
	if len(key) == 0 {
		return nil, errors.New("state signing key is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("state ttl must be positive, got %s", ttl)
	}
	return &Signed{key: key, ttl: ttl, now: time.Now}, nil
}

// Encode signs a token carrying userId, iat and exp.
func (s *Signed) Encode(userID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry and returns the user id.
func (s *Signed) Decode(state string) (string, error) {
	if state == "" {
		return "", ErrInvalidState
	}

	var c claims
	_, err := jwt.ParseWithClaims(state, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredState
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if c.UserID == "" {
		return "", fmt.Errorf("%w: missing userId", ErrInvalidState)
	}
	return c.UserID, nil
}

// New picks the codec: Signed when key is set, Plain otherwise.
func New(key string, ttl time.Duration) (Codec, error) {
	if key == "" {
		return Plain{}, nil
	}
	return NewSigned([]byte(key), ttl)
}
