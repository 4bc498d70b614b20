package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed structure and unverifiable signatures.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned by Validate once exp is no longer in the future.
	ErrExpiredToken = errors.New("token expired")
	// ErrMissingClaim is returned when sub or exp is absent from the payload.
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims are the fields carried inside a signed credential token.
type Claims struct {
	Subject   string
	Roles     []string
	Name      string
	Email     string
	JWTID     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and decodes HS256 credential tokens against a fixed key.
type Codec struct {
	key []byte
	ttl time.Duration
}

func NewCodec(key []byte, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Codec{key: key, ttl: ttl}
}

// CodecFromEnv builds a codec from JWT_SECRET and JWT_EXPIRES_IN.
func CodecFromEnv() *Codec {
	ttl := 24 * time.Hour
	if s := os.Getenv("JWT_EXPIRES_IN"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			ttl = d
		}
	}
	return NewCodec([]byte(os.Getenv("JWT_SECRET")), ttl)
}

func (c *Codec) TTL() time.Duration { return c.ttl }

// Sign issues a token for the subject. Name and email are optional display
// claims and are omitted from the payload when empty.
func (c *Codec) Sign(subject string, roles []string, name, email string) (string, error) {
	now := time.Now().UTC()
	mc := jwt.MapClaims{
		"sub":   subject,
		"roles": roles,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(c.ttl).Unix(),
	}
	if name != "" {
		mc["name"] = name
	}
	if email != "" {
		mc["email"] = email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(c.key)
}

// Decode parses and signature-checks a token, returning its claims.
// Expiry is NOT enforced here; that is the lifecycle guard's concern, so
// callers can still read the claims of an expired token. A token missing
// sub or exp fails with ErrMissingClaim no matter how it is signed.
func (c *Codec) Decode(tokenStr string) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	if err != nil || !tok.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: unexpected claims shape", ErrInvalidToken)
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return Claims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	expRaw, ok := mc["exp"].(float64)
	if !ok {
		return Claims{}, fmt.Errorf("%w: exp", ErrMissingClaim)
	}
	out := Claims{
		Subject:   sub,
		ExpiresAt: time.Unix(int64(expRaw), 0).UTC(),
	}
	if iat, ok := mc["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	if arr, ok := mc["roles"].([]interface{}); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok {
				out.Roles = append(out.Roles, s)
			}
		}
	}
	out.Name, _ = mc["name"].(string)
	out.Email, _ = mc["email"].(string)
	out.JWTID, _ = mc["jti"].(string)
	return out, nil
}
