// Package token decodes platform session tokens without verifying them.
//
// The signature is trusted to the issuing server and to transport security;
// the client only needs the expiry and the embedded user payload.
package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ashureev/quantdesk/internal/domain"
)

// ErrDecode is matched by every decode failure.
var ErrDecode = errors.New("token decode failed")

// DecodeError describes why a token could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "decode token: " + e.Reason + ": " + e.Err.Error()
	}
	return "decode token: " + e.Reason
}

// Is reports ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// UserInfoClaim is the payload field the platform nests the user info under.
const UserInfoClaim = "claims"

// Decoder turns a raw token into claims.
type Decoder interface {
	Decode(raw string) (*domain.Claims, error)
}

// Codec is the default Decoder.
type Codec struct{}

// Decode implements Decoder.
func (Codec) Decode(raw string) (*domain.Claims, error) {
	return Decode(raw)
}

type payload struct {
	jwt.RegisteredClaims
	UserInfo json.RawMessage `json:"claims"`
}

var parser = jwt.NewParser()

// Decode parses the payload segment of raw. It fails with a *DecodeError
// when the token is not a well-formed JWT, carries no expiry, or has no
// user-info object under UserInfoClaim.
func Decode(raw string) (*domain.Claims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, &DecodeError{Reason: "empty token"}
	}

	var p payload
	if _, _, err := parser.ParseUnverified(raw, &p); err != nil {
		return nil, &DecodeError{Reason: "malformed token", Err: err}
	}
	if p.ExpiresAt == nil {
		return nil, &DecodeError{Reason: "missing exp"}
	}

	info := bytes.TrimSpace(p.UserInfo)
	if len(info) == 0 || info[0] != '{' {
		return nil, &DecodeError{Reason: "missing " + UserInfoClaim + " object"}
	}
	var user domain.UserInfo
	if err := json.Unmarshal(info, &user); err != nil {
		return nil, &DecodeError{Reason: "invalid " + UserInfoClaim + " object", Err: err}
	}

	return &domain.Claims{
		ExpiresAt: p.ExpiresAt.Unix(),
		UserInfo:  user,
	}, nil
}
