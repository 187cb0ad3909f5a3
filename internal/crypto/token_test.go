package crypto

import (
	"strings"
	"testing"
)

func TestHashToken(t *testing.T) {
	first := HashToken("access-token")
	if first != HashToken("access-token") {
		t.Fatalf("expected hashing to be deterministic")
	}
	if first == HashToken("other-token") {
		t.Fatalf("expected different tokens to hash differently")
	}
	if strings.Contains(first, "access-token") {
		t.Fatalf("expected hash not to contain the raw token")
	}
	if len(first) != 43 {
		t.Fatalf("expected 43 char base64url digest, got %d", len(first))
	}
}
