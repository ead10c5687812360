package crypto_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"gatelink/internal/crypto"
)

func TestBuildAuthPayload_NoNonce(t *testing.T) {
	got := crypto.BuildAuthPayload("dev", "cli", "ui", "operator",
		[]string{"operator.read", "operator.write"}, 1700000000000, "tok", "")
	want := "v1|dev|cli|ui|operator|operator.read,operator.write|1700000000000|tok"
	if got != want {
		t.Fatalf("payload = %q, want %q", got, want)
	}
}

func TestBuildAuthPayload_WithNonce(t *testing.T) {
	got := crypto.BuildAuthPayload("dev", "cli", "ui", "operator",
		[]string{"operator.admin"}, 42, "", "n0nce")
	want := "v2|dev|cli|ui|operator|operator.admin|42||n0nce"
	if got != want {
		t.Fatalf("payload = %q, want %q", got, want)
	}
}

func TestBuildAuthPayload_EmptyScopes(t *testing.T) {
	got := crypto.BuildAuthPayload("d", "c", "m", "r", nil, 1, "t", "")
	if got != "v1|d|c|m|r||1|t" {
		t.Fatalf("payload = %q", got)
	}
}

func TestDeriveDeviceID_IsSHA256Hex(t *testing.T) {
	_, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	sum := sha256.Sum256(pub[:])
	want := hex.EncodeToString(sum[:])

	id := crypto.DeriveDeviceID(pub[:])
	if id.String() != want {
		t.Fatalf("DeriveDeviceID = %s, want %s", id, want)
	}
	if id != crypto.DeriveDeviceID(pub[:]) {
		t.Fatal("DeriveDeviceID is not deterministic")
	}
	if strings.ToLower(id.String()) != id.String() {
		t.Fatal("device id must be lowercase")
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	if crypto.PublicFromPrivate(priv) != pub {
		t.Fatal("PublicFromPrivate mismatch")
	}
	msg := []byte("v1|a|b|c|d||1|")
	sig := crypto.SignEd25519(priv, msg)
	if !crypto.VerifyEd25519(pub, msg, sig) {
		t.Fatal("signature did not verify")
	}
	if crypto.VerifyEd25519(pub, []byte("tampered"), sig) {
		t.Fatal("signature verified over wrong message")
	}

	enc := crypto.B64URL(sig)
	if strings.ContainsAny(enc, "=+/") {
		t.Fatalf("base64url must be unpadded and url-safe: %q", enc)
	}
	dec, err := crypto.FromB64URL(enc)
	if err != nil || string(dec) != string(sig) {
		t.Fatalf("FromB64URL round trip failed: %v", err)
	}
}
