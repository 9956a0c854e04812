package fingerprint

import (
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{
			name:   "empty",
			prompt: "",
			want:   "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:   "abc",
			prompt: "abc",
			want:   "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hash(tt.prompt); got != tt.want {
				t.Errorf("Hash(%q) = %q, want %q", tt.prompt, got, tt.want)
			}
		})
	}
}

func TestHash_Properties(t *testing.T) {
	prompts := []string{
		"What is the capital of France?",
		"What is the capital of France? ",
		"a",
		strings.Repeat("token ", 500),
	}

	seen := make(map[string]string)
	for _, p := range prompts {
		h := Hash(p)
		if h != Hash(p) {
			t.Errorf("Hash(%q) is not deterministic", p)
		}
		if len(h) != 64 {
			t.Errorf("len(Hash(%q)) = %d, want 64", p, len(h))
		}
		if strings.ToLower(h) != h {
			t.Errorf("Hash(%q) = %q, want lowercase", p, h)
		}
		if strings.Contains(h, p) {
			t.Errorf("Hash(%q) contains the prompt", p)
		}
		if prev, ok := seen[h]; ok {
			t.Errorf("Hash collision between %q and %q", prev, p)
		}
		seen[h] = p
	}
}
