// Package tokentest mints platform-shaped tokens for tests.
package tokentest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("quantdesk-test-signing-key")

// Mint signs a token carrying exp and the user info nested under "claims".
func Mint(tb testing.TB, userInfo map[string]any, exp time.Time) string {
	tb.Helper()
	return MintClaims(tb, jwt.MapClaims{
		"exp":    exp.Unix(),
		"claims": userInfo,
	})
}

// MintClaims signs arbitrary claims with HS256.
func MintClaims(tb testing.TB, claims jwt.MapClaims) string {
	tb.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		tb.Fatalf("sign token: %v", err)
	}
	return signed
}
