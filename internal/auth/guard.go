package auth

import "time"

// Validate decodes the token and enforces its lifecycle: claims present and
// expiry strictly in the future (UTC, zero skew tolerance; exp == now is
// already expired).
func (c *Codec) Validate(tokenStr string) (Claims, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return Claims{}, err
	}
	if !time.Now().UTC().Before(claims.ExpiresAt) {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

// IsValid reports whether the token decodes, carries the required claims,
// and has not expired.
func (c *Codec) IsValid(tokenStr string) bool {
	_, err := c.Validate(tokenStr)
	return err == nil
}

// ExpirationDate returns the token's expiry, or nil when the token cannot
// be decoded. It never returns an error.
func (c *Codec) ExpirationDate(tokenStr string) *time.Time {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return nil
	}
	exp := claims.ExpiresAt
	return &exp
}

// TimeRemaining returns how long until the token expires, clamped at zero
// for expired or undecodable tokens.
func (c *Codec) TimeRemaining(tokenStr string) time.Duration {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return 0
	}
	d := time.Until(claims.ExpiresAt)
	if d < 0 {
		return 0
	}
	return d
}
