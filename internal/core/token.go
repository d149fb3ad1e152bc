package core

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResponseAction is what an interviewer chose to do with an invite.
type ResponseAction string

const (
	ActionAccept ResponseAction = "accept"
	ActionReject ResponseAction = "reject"
)

// ResponseToken is the opaque payload embedded in an invite's accept/reject
// links. It is intentionally self-contained so the response endpoint needs no
// session state, only the token itself.
type ResponseToken struct {
	InviteID  string
	Action    ResponseAction
	ExpiresAt time.Time
}

// ErrTokenInvalid covers both malformed and tampered tokens.
var ErrTokenInvalid = fmt.Errorf("invalid response token")

// ErrTokenExpired is returned for a well-formed token past its deadline.
var ErrTokenExpired = fmt.Errorf("response token expired")

// Encode serializes the token as URL-safe base64.
func (t ResponseToken) Encode() string {
	raw := fmt.Sprintf("invite:%s;action:%s;exp:%d", t.InviteID, t.Action, t.ExpiresAt.Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeResponseToken parses and validates an encoded token against now.
func DecodeResponseToken(encoded string, now time.Time) (*ResponseToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	parts := strings.Split(string(raw), ";")
	if len(parts) != 3 {
		return nil, ErrTokenInvalid
	}

	fields := make(map[string]string, len(parts))
	for _, part := range parts {
		key, value, ok := strings.Cut(part, ":")
		if !ok || value == "" {
			return nil, ErrTokenInvalid
		}
		fields[key] = value
	}

	action := ResponseAction(fields["action"])
	if action != ActionAccept && action != ActionReject {
		return nil, ErrTokenInvalid
	}

	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	token := &ResponseToken{
		InviteID:  fields["invite"],
		Action:    action,
		ExpiresAt: time.Unix(exp, 0).UTC(),
	}
	if token.InviteID == "" {
		return nil, ErrTokenInvalid
	}
	if now.After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return token, nil
}
