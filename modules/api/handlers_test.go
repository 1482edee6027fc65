package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", defaultHistoryLimit, defaultHistoryLimit},
		{"zero", 0, 1},
		{"negative", -5, 1},
		{"max", maxHistoryLimit, maxHistoryLimit},
		{"over max", maxHistoryLimit + 1, maxHistoryLimit},
		{"in range", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.limit))
		})
	}
}

func TestTokenResponseShape(t *testing.T) {
	payload, err := json.Marshal(TokenResponse{
		AccessToken: "abc",
		TokenType:   "bearer",
		ExpiresIn:   900,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"abc","token_type":"bearer","expires_in":900}`, string(payload))
}

func TestErrorResponseShape(t *testing.T) {
	payload, err := json.Marshal(ErrorResponse{
		Error:   "invalid_room",
		Message: "Room name is invalid",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"invalid_room","message":"Room name is invalid"}`, string(payload))
}
