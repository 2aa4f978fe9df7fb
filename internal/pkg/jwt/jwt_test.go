package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	secret := []byte("s3cret")
	token, err := GenerateToken("stu-1", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "stu-1", claims.UserID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("stu-1", []byte("a"), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(token, []byte("b"))
	require.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	secret := []byte("s3cret")
	token, err := GenerateToken("stu-1", secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(token, secret)
	require.Error(t, err)
}

func TestParseFallsBackToSubject(t *testing.T) {
	secret := []byte("s3cret")
	raw := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
		Subject:   "stu-9",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := raw.SignedString(secret)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "stu-9", claims.UserID)
}

func TestGenerateRejectsEmptyUser(t *testing.T) {
	_, err := GenerateToken("", []byte("x"), time.Hour)
	require.Error(t, err)
}
