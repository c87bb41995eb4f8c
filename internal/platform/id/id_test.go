package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func mustID(t *testing.T) string {
	t.Helper()
	generated, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	return generated
}

func decodeID(t *testing.T, generated string) []byte {
	t.Helper()
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(generated))
	if err != nil {
		t.Fatalf("decode %q: %v", generated, err)
	}
	return raw
}

func TestNewIDIsUnpaddedLowercaseBase32(t *testing.T) {
	generated := mustID(t)

	if len(generated) != 26 {
		t.Fatalf("id length = %d, want 26", len(generated))
	}
	if generated != strings.ToLower(generated) {
		t.Fatalf("id %q contains uppercase characters", generated)
	}
	if strings.ContainsRune(generated, '=') {
		t.Fatalf("id %q carries base32 padding", generated)
	}
	if raw := decodeID(t, generated); len(raw) != 16 {
		t.Fatalf("decoded length = %d, want 16", len(raw))
	}
}

func TestNewIDEncodesUUIDv4(t *testing.T) {
	raw := decodeID(t, mustID(t))

	if got := raw[6] >> 4; got != 4 {
		t.Fatalf("uuid version = %d, want 4", got)
	}
	if got := raw[8] & 0xC0; got != 0x80 {
		t.Fatalf("uuid variant = 0x%X, want 0x80", got)
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 512)
	for i := 0; i < 512; i++ {
		generated := mustID(t)
		if _, dup := seen[generated]; dup {
			t.Fatalf("duplicate id %q after %d draws", generated, i)
		}
		seen[generated] = struct{}{}
	}
}
