package identity_test

import (
	"errors"
	"testing"

	"gatelink/internal/crypto"
	"gatelink/internal/domain"
	"gatelink/internal/services/identity"
	"gatelink/internal/store"
)

type memStore struct {
	id    domain.DeviceIdentity
	ok    bool
	saves int
	err   error
}

func (m *memStore) SaveDeviceIdentity(id domain.DeviceIdentity) error {
	m.saves++
	m.id, m.ok = id, true
	return nil
}

func (m *memStore) LoadDeviceIdentity() (domain.DeviceIdentity, bool, error) {
	return m.id, m.ok, m.err
}

func TestLoadOrCreate_CreatesOnceAndReloads(t *testing.T) {
	home := t.TempDir()

	first, err := identity.New(store.NewIdentityFileStore(home, ""), nil).LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if first.DeviceID != crypto.DeriveDeviceID(first.PublicKey.Slice()) {
		t.Fatal("device id is not derived from the public key")
	}
	if first.CreatedAtMs == 0 {
		t.Fatal("expected creation timestamp")
	}

	second, err := identity.New(store.NewIdentityFileStore(home, ""), nil).LoadOrCreate()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if second != first {
		t.Fatal("reloaded identity differs from the created one")
	}
}

func TestLoadOrCreate_HealsStaleDeviceID(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	ms := &memStore{
		id: domain.DeviceIdentity{DeviceID: "stale", PublicKey: pub, PrivateKey: priv},
		ok: true,
	}

	got, err := identity.New(ms, nil).LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	want := crypto.DeriveDeviceID(pub.Slice())
	if got.DeviceID != want {
		t.Fatalf("device id = %s, want %s", got.DeviceID, want)
	}
	if ms.saves != 1 || ms.id.DeviceID != want {
		t.Fatalf("healed identity not written back (saves=%d)", ms.saves)
	}
}

func TestLoadOrCreate_StoreError(t *testing.T) {
	ms := &memStore{err: errors.New("disk on fire")}
	if _, err := identity.New(ms, nil).LoadOrCreate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestSign_VerifiesAgainstPublicKey(t *testing.T) {
	svc := identity.New(&memStore{}, nil)
	id, err := svc.LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	payload := []byte(crypto.BuildAuthPayload(id.DeviceID.String(), "cli", "cli", "operator", nil, 1, "", "n"))
	sig, err := svc.Sign(payload, id)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	raw, err := crypto.FromB64URL(sig)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if !crypto.VerifyEd25519(id.PublicKey, payload, raw) {
		t.Fatal("signature does not verify")
	}

	again, _ := svc.Sign(payload, id)
	if again != sig {
		t.Fatal("Ed25519 signatures must be deterministic")
	}

	if _, err := svc.Sign(nil, id); !errors.Is(err, identity.ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := svc.Sign(payload, domain.DeviceIdentity{}); err == nil {
		t.Fatal("expected error without a private key")
	}
}
