package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	codec := NewCodec(testKey, time.Hour)

	tok, err := codec.Sign("u1", []string{"employee"}, "", "")
	require.NoError(t, err)
	assert.True(t, codec.IsValid(tok))

	expired := signRaw(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	assert.False(t, codec.IsValid(expired))

	// exp == now is already invalid: the boundary gets no tolerance.
	boundary := signRaw(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Unix()})
	assert.False(t, codec.IsValid(boundary))

	assert.False(t, codec.IsValid("garbage"))
	noSub := signRaw(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	assert.False(t, codec.IsValid(noSub))
}

func TestValidateTaggedErrors(t *testing.T) {
	codec := NewCodec(testKey, time.Hour)

	expired := signRaw(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	_, err := codec.Validate(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = codec.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpirationDateNeverErrors(t *testing.T) {
	codec := NewCodec(testKey, time.Hour)

	assert.Nil(t, codec.ExpirationDate("garbage"))
	assert.Nil(t, codec.ExpirationDate(""))

	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	expired := signRaw(t, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})
	got := codec.ExpirationDate(expired)
	require.NotNil(t, got)
	assert.Equal(t, exp.UTC().Unix(), got.Unix())
}

func TestTimeRemainingClampsAtZero(t *testing.T) {
	codec := NewCodec(testKey, time.Hour)

	assert.Equal(t, time.Duration(0), codec.TimeRemaining("garbage"))

	expired := signRaw(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()})
	assert.Equal(t, time.Duration(0), codec.TimeRemaining(expired))

	tok, err := codec.Sign("u1", nil, "", "")
	require.NoError(t, err)
	remaining := codec.TimeRemaining(tok)
	assert.Greater(t, remaining, 55*time.Minute)
	assert.LessOrEqual(t, remaining, time.Hour)
}
