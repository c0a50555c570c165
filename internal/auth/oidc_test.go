package auth_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/curioapp/curio/internal/auth"
)

func TestGenerateState(t *testing.T) {
	a, err := auth.GenerateState()
	if err != nil {
		t.Fatalf("GenerateState: %v", err)
	}
	b, err := auth.GenerateState()
	if err != nil {
		t.Fatalf("GenerateState: %v", err)
	}
	if a == "" || a == b {
		t.Error("states must be non-empty and unique")
	}
}

func TestGeneratePKCE(t *testing.T) {
	verifier, challenge, err := auth.GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE: %v", err)
	}
	if verifier == "" || challenge == "" {
		t.Fatal("verifier and challenge must be non-empty")
	}

	h := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(h[:])
	if challenge != want {
		t.Errorf("challenge = %q, want S256 of the verifier", challenge)
	}
}
