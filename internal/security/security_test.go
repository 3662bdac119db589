package security

import (
	"testing"
	"time"
)

func TestDeriveTokenDeterministicAndUnique(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	if len(seed) != seedSize {
		t.Fatalf("seed length = %d, want %d", len(seed), seedSize)
	}
	at := time.Now().UTC()

	a := DeriveToken(seed, at, "s1", "", "ua")
	b := DeriveToken(seed, at, "s1", "", "ua")
	if a != b {
		t.Error("same inputs must derive the same token")
	}
	if len(a) != 128 { // 512 bits hex encoded
		t.Errorf("token length = %d, want 128", len(a))
	}

	if c := DeriveToken(seed, at, "s2", "", "ua"); c == a {
		t.Error("different session must derive a different token")
	}
	seed2, _ := NewSeed()
	if c := DeriveToken(seed2, at, "s1", "", "ua"); c == a {
		t.Error("different seed must derive a different token")
	}
}

func TestHashIdentifierAndEqual(t *testing.T) {
	h := HashIdentifier("abc")
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64", len(h))
	}
	if !HashEqual("abc", h) {
		t.Error("HashEqual should match")
	}
	if HashEqual("abd", h) {
		t.Error("HashEqual should not match different value")
	}
}

func TestBearerVerifyRoundTrip(t *testing.T) {
	signer, err := ParsePrivateKey(TestPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	verifier, err := NewTestBearerVerifier()
	if err != nil {
		t.Fatalf("NewTestBearerVerifier: %v", err)
	}

	tok, err := SignBearer(signer, "test-issuer", "test-audience", "u1", "sess1", time.Minute)
	if err != nil {
		t.Fatalf("SignBearer: %v", err)
	}
	userID, sessionID, err := verifier.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "u1" || sessionID != "sess1" {
		t.Errorf("got %q/%q", userID, sessionID)
	}
}

func TestBearerVerifyRejectsWrongIssuer(t *testing.T) {
	signer, _ := ParsePrivateKey(TestPrivateKeyPEM)
	verifier, _ := NewTestBearerVerifier()

	tok, err := SignBearer(signer, "other-issuer", "test-audience", "u1", "", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := verifier.Verify(tok); err == nil {
		t.Error("wrong issuer should be rejected")
	}
}

func TestBearerVerifyRejectsExpired(t *testing.T) {
	signer, _ := ParsePrivateKey(TestPrivateKeyPEM)
	verifier, _ := NewTestBearerVerifier()

	tok, err := SignBearer(signer, "test-issuer", "test-audience", "u1", "", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := verifier.Verify(tok); err == nil {
		t.Error("expired credential should be rejected")
	}
}
