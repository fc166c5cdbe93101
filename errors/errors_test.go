package errors

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHint(t *testing.T) {
	err := WithHint(ErrAlreadyRunning, "poll status and retry once the job finishes")

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "poll status and retry once the job finishes", hints[0])
	assert.True(t, IsAlreadyRunning(err))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrAlreadyRunning,
		ErrStopped,
		ErrInvalidParameters,
		ErrInvalidName,
		ErrNotFound,
		ErrWriteFailed,
		ErrSyntax,
		ErrEngineFault,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "%v must not match %v", a, b)
		}
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"already running", Wrap(ErrAlreadyRunning, "launch"), IsAlreadyRunning},
		{"stopped", Wrap(ErrStopped, "launch"), IsStopped},
		{"invalid parameters", Wrapf(ErrInvalidParameters, "country %q", ""), IsInvalidParameters},
		{"invalid name", NewInvalidNameError("name %q escapes root", "../x.py"), IsInvalidName},
		{"not found", NewNotFoundError("script %s", "a.py"), IsNotFound},
		{"syntax", Wrap(ErrSyntax, "line 3"), IsSyntax},
		{"write failed", WrapWriteFailed(New("disk full"), "write backup"), IsWriteFailed},
		{"engine fault", WrapEngineFault(New("boom"), "engine run"), IsEngineFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(nil))
			assert.False(t, tt.check(New("unrelated")))
		})
	}
}

func TestWrapWriteFailed_KeepsCause(t *testing.T) {
	err := WrapWriteFailed(os.ErrPermission, "create backup")

	assert.True(t, Is(err, ErrWriteFailed))
	assert.True(t, Is(err, os.ErrPermission))
	assert.Contains(t, err.Error(), "create backup")
	assert.Nil(t, WrapWriteFailed(nil, "noop"))
	assert.Nil(t, WrapEngineFault(nil, "noop"))
}

func TestNotFoundMessage(t *testing.T) {
	err := NewNotFoundError("script %s", "scraper.py")
	assert.Equal(t, "script scraper.py: not found", err.Error())
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func ExampleWrap() {
	err := Wrap(ErrNotFound, "script root /srv/scrapers")
	fmt.Println(err)
	// Output: script root /srv/scrapers: not found
}
