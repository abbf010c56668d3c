package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/quantdesk/internal/token/tokentest"
)

func TestDecode_UnwrapsNestedUserInfo(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := tokentest.Mint(t, map[string]any{
		"id":       1,
		"username": "alice",
		"nickname": "A",
		"email":    "a@example.com",
		"phone":    "555",
	}, exp)

	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt)
	assert.Equal(t, int64(1), claims.UserInfo.ID)
	assert.Equal(t, "alice", claims.UserInfo.Username)
	assert.Equal(t, "A", claims.UserInfo.Nickname)
	assert.Equal(t, "a@example.com", claims.UserInfo.Email)
	assert.Equal(t, "555", claims.UserInfo.Phone)
}

func TestDecode_IgnoresSignature(t *testing.T) {
	raw := tokentest.Mint(t, map[string]any{"id": 7}, time.Now().Add(time.Minute))
	tampered := raw[:len(raw)-4] + "AAAA"

	claims, err := Codec{}.Decode("Bearer " + tampered)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserInfo.ID)
}

func TestDecode_Malformed(t *testing.T) {
	now := time.Now().Unix()
	cases := map[string]string{
		"empty":           "",
		"one segment":     "abc",
		"two segments":    "abc.def",
		"bad base64":      "!!!.@@@.###",
		"header not json": "bm90LWpzb24.e30.sig",
		"no exp":          tokentest.MintClaims(t, jwt.MapClaims{"claims": map[string]any{"id": 1}}),
		"no user info":    tokentest.MintClaims(t, jwt.MapClaims{"exp": now, "id": 1}),
		"user info str":   tokentest.MintClaims(t, jwt.MapClaims{"exp": now, "claims": "alice"}),
		"user info null":  tokentest.MintClaims(t, jwt.MapClaims{"exp": now, "claims": nil}),
		"bad user id":     tokentest.MintClaims(t, jwt.MapClaims{"exp": now, "claims": map[string]any{"id": "x"}}),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			claims, err := Decode(raw)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.True(t, errors.Is(err, ErrDecode))

			var de *DecodeError
			assert.True(t, errors.As(err, &de))
			assert.NotEmpty(t, de.Reason)
		})
	}
}

func TestDecode_ExpiredTokenStillDecodes(t *testing.T) {
	raw := tokentest.Mint(t, map[string]any{"id": 1}, time.Now().Add(-time.Hour))
	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.True(t, claims.Expired(time.Now()))
}
