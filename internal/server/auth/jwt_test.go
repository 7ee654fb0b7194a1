package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := GenerateToken("gallery-ui", secret, time.Hour)
	require.NoError(t, err)

	client, err := ClientFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "gallery-ui", client)
}

func TestClientFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("u1", secret, -time.Second)
	require.NoError(t, err)

	_, err = ClientFromToken(tok, secret)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestClientFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = ClientFromToken(tok, []byte("wrong-secret"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestClientFromToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := ClientFromToken("not.a.token", []byte("k"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestClientFromToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Client:           "x",
	}).SignedString(secret)
	require.NoError(t, err)

	_, err = ClientFromToken(tok, secret)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestClientFromToken_RequiresClientAndExpiry(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	noClient, err := GenerateToken("", secret, time.Hour)
	require.NoError(t, err)
	_, err = ClientFromToken(noClient, secret)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Client: "x"}).SignedString(secret)
	require.NoError(t, err)
	_, err = ClientFromToken(noExpiry, secret)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
