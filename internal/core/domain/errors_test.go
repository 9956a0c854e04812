package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ProviderError
		expected string
	}{
		{
			name:     "message only",
			err:      NewProviderError("openai", "boom"),
			expected: "openai: boom",
		},
		{
			name:     "with code",
			err:      NewProviderError("openai", "rate limited").WithCode(ErrCodeRateLimited),
			expected: "openai (rate_limited): rate limited",
		},
		{
			name:     "anonymous provider",
			err:      &ProviderError{Message: "oops"},
			expected: "provider: oops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStorageError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *StorageError
		expected string
	}{
		{
			name:     "message and cause",
			err:      NewStorageError("save", "insert event", io.ErrUnexpectedEOF),
			expected: "storage save: insert event: unexpected EOF",
		},
		{
			name:     "cause only",
			err:      NewStorageError("connect", "", io.EOF),
			expected: "storage connect: EOF",
		},
		{
			name:     "message only",
			err:      &StorageError{Message: "not connected"},
			expected: "storage: not connected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := fmt.Errorf("persist: %w", NewStorageError("save", "", cause))

	var storageErr *StorageError
	if !errors.As(wrapped, &storageErr) {
		t.Fatal("expected errors.As to find StorageError")
	}
	if storageErr.Op != "save" {
		t.Errorf("Op = %q, want save", storageErr.Op)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to reach the cause")
	}

	provErr := NewProviderError("stub", "rate limited").WithCode(ErrCodeRateLimited).WithStatusCode(429)
	var pe *ProviderError
	if !errors.As(fmt.Errorf("call: %w", provErr), &pe) {
		t.Fatal("expected errors.As to find ProviderError")
	}
	if pe.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", pe.StatusCode)
	}

	cfgErr := NewConfigurationError("storage", "unsupported backend \"redis\"")
	if got, want := cfgErr.Error(), `configuration: storage: unsupported backend "redis"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
