package auth

import (
	"testing"
	"time"

	"freshchain-ledger-server/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var member = common.HexToAddress("0x604b9CF5B8B460cbF4af690eF311DbB98025385B")

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPasswordHash("s3cret", hash))
	assert.False(t, CheckPasswordHash("other", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, err := issuer.Generate("p@freshchain.local", member, AccountRoleMember)
	require.NoError(t, err)

	claims, caller, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "p@freshchain.local", claims.Email)
	assert.Equal(t, AccountRoleMember, claims.AccountRole)
	assert.Equal(t, member, caller)
}

func TestParse_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewTokenIssuer("other", time.Hour).Generate("a@b.c", member, AccountRoleMember)
		require.NoError(t, err)
		_, _, err = issuer.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewTokenIssuer("secret", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := old.Generate("a@b.c", member, AccountRoleMember)
		require.NoError(t, err)
		_, _, err = issuer.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("zero address claim", func(t *testing.T) {
		token, err := issuer.Generate("a@b.c", ledger.ZeroAddress, AccountRoleMember)
		require.NoError(t, err)
		claims, caller, err := issuer.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
		assert.Equal(t, ledger.ZeroAddress, caller)
	})

	t.Run("bad address claim", func(t *testing.T) {
		claims := &JWTClaims{
			Address:          "nope",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, _, err = issuer.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := issuer.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
