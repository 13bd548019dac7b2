package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	level  string
	fields map[string]interface{}
}

func (r *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	r.level, r.fields = "warn", fields
}

func (r *recordingLogger) Error(msg string, fields map[string]interface{}) {
	r.level, r.fields = "error", fields
}

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewStorageUnavailableError("find", stderrors.New("conn refused")))

	assert.True(t, stderrors.Is(err, ErrStorageUnavailable))
	assert.False(t, stderrors.Is(err, ErrMissingToken))
	assert.True(t, IsStorageError(err))
	assert.Equal(t, ErrCodeStorageUnavailable, CodeOf(err))
}

func TestStandardError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("entropy exhausted")
	err := NewTokenGenerationFailedError(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "TOKEN_GENERATION_FAILED")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), CodeOf(stderrors.New("x")))
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeStorageUnavailable, "STORAGE"},
		{ErrCodeMissingToken, "SESSION"},
		{ErrCodeInvalidOrInactiveSession, "SESSION"},
		{ErrCodeDuplicateToken, "SESSION"},
		{ErrCodeAuthenticationFailed, "PORTAL"},
		{ErrCodeUserInactive, "PORTAL"},
		{ErrCodeRateLimitExceeded, "RATE_LIMIT"},
		{ErrCodeInvalidRequest, "VALIDATION"},
		{"SOMETHING_ELSE", "OTHER"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}

func TestErrorHandler_Handle(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	got := h.Handle("touch", NewStorageUnavailableError("touch", stderrors.New("timeout")), map[string]interface{}{"sessionId": "s1"})
	assert.Equal(t, ErrCodeStorageUnavailable, got.Code)
	assert.Equal(t, "warn", log.level)
	assert.Equal(t, "s1", log.fields["sessionId"])
	assert.Equal(t, "STORAGE", log.fields["errorCategory"])

	got = h.Handle("parse", stderrors.New("bad input"), nil)
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), got.Code)
	assert.Equal(t, "error", log.level)

	assert.Nil(t, h.Handle("noop", nil, nil))
}
