package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("bad input"), false},
		{"transient wrapper", NewTransientError(errors.New("429"), 429), true},
		{"wrapped transient", fmt.Errorf("calling api: %w", NewTransientError(errors.New("503"), 503)), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"reset by peer string", errors.New("read tcp: connection reset by peer"), true},
		{"broken pipe string", errors.New("write: broken pipe"), true},
		{"dns failure", errors.New("dial tcp: lookup example.com: no such host"), true},
		{"io timeout string", errors.New("context deadline exceeded (i/o timeout)"), true},
		{"idle connection string", errors.New("http: server closed idle connection"), false},
		{"validation error", errors.New("missing required field"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 500)
	assert.Equal(t, "inner", te.Error())
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, 500, te.StatusCode)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
