package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	token := ResponseToken{
		InviteID:  "8f14e45f-ceea-4e67-ab1c-0f5e9a1b2c3d",
		Action:    ActionAccept,
		ExpiresAt: now.Add(15 * time.Minute),
	}

	decoded, err := DecodeResponseToken(token.Encode(), now)
	require.NoError(t, err)
	assert.Equal(t, token.InviteID, decoded.InviteID)
	assert.Equal(t, ActionAccept, decoded.Action)
	assert.Equal(t, token.ExpiresAt.Unix(), decoded.ExpiresAt.Unix())
}

func TestDecodeResponseToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		encoded string
		wantErr error
	}{
		{
			name:    "not base64",
			encoded: "!!not-base64!!",
			wantErr: ErrTokenInvalid,
		},
		{
			name:    "wrong field count",
			encoded: ResponseToken{InviteID: "a", Action: ActionAccept}.Encode() + "x",
			wantErr: ErrTokenInvalid,
		},
		{
			name: "unknown action",
			encoded: func() string {
				tok := ResponseToken{InviteID: "a", Action: "maybe", ExpiresAt: now.Add(time.Hour)}
				return tok.Encode()
			}(),
			wantErr: ErrTokenInvalid,
		},
		{
			name: "expired",
			encoded: ResponseToken{
				InviteID:  "a",
				Action:    ActionReject,
				ExpiresAt: now.Add(-time.Minute),
			}.Encode(),
			wantErr: ErrTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponseToken(tt.encoded, now)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIdempotencyKeyBuilders(t *testing.T) {
	assert.Equal(t, "interview:iv1:winner", WinnerKey("iv1"))
	assert.Equal(t, "invite:in1:notify", InviteNotifyKey("in1"))
	assert.Equal(t, "invite:in1:slot-taken", SlotTakenKey("in1"))
	assert.Equal(t, "interview:iv1:reminder:24h", ReminderKey("iv1", "24h"))
	assert.Equal(t, "interview:iv1:confirm-notify", ConfirmNotifyKey("iv1"))
}
