package auth

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "swap-middleware")
	require.NoError(t, err)

	actor := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token, err := issuer.Issue(User(actor), time.Minute)
	require.NoError(t, err)

	cred, err := issuer.Validate(token)
	require.NoError(t, err)
	require.Equal(t, RoleUser, cred.Role)
	require.Equal(t, actor, cred.Actor)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "swap-middleware")
	require.NoError(t, err)

	token, err := issuer.Issue(Admin(), -time.Minute)
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	require.Error(t, err)
}

func TestTokenIssuer_RejectsWrongIssuer(t *testing.T) {
	a, err := NewTokenIssuer(testSecret, "issuer-a")
	require.NoError(t, err)
	b, err := NewTokenIssuer(testSecret, "issuer-b")
	require.NoError(t, err)

	token, err := a.Issue(Keeper(common.Address{}), time.Minute)
	require.NoError(t, err)

	_, err = b.Validate(token)
	require.Error(t, err)
}

func TestTokenIssuer_RejectsShortSecret(t *testing.T) {
	_, err := NewTokenIssuer("short", "swap-middleware")
	require.Error(t, err)
}

func TestCredential_Capabilities(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	require.True(t, Admin().IsKeeper())
	require.True(t, Admin().IsBridge())
	require.True(t, Admin().ActsFor(user))

	require.True(t, Keeper(other).IsKeeper())
	require.False(t, Keeper(other).IsBridge())
	require.False(t, Keeper(other).ActsFor(user))

	require.True(t, Bridge(other).IsBridge())
	require.False(t, Bridge(other).IsKeeper())

	require.True(t, User(user).ActsFor(user))
	require.False(t, User(other).ActsFor(user))
}
