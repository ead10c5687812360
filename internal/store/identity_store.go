package store

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"gatelink/internal/crypto"
	"gatelink/internal/domain"
	"gatelink/internal/util/memzero"
)

const idFilename = "device.json"

// ErrPassphraseRequired is returned when the stored private key is sealed
// and the store was opened without a passphrase.
var ErrPassphraseRequired = errors.New("store: identity is sealed, passphrase required")

// identityDoc is the on-disk identity document.
//
// PrivateKey holds the standard-base64 key when no passphrase is set;
// otherwise SealedPrivateKey holds it encrypted and PrivateKey is empty.
type identityDoc struct {
	DeviceID         string `json:"deviceId"`
	PublicKey        string `json:"publicKey"`
	PrivateKey       string `json:"privateKey,omitempty"`
	SealedPrivateKey *blob  `json:"sealedPrivateKey,omitempty"`
	CreatedAtMs      int64  `json:"createdAtMs"`
}

// IdentityFileStore persists the device identity to disk.
type IdentityFileStore struct {
	dir        string
	passphrase string
	mu         sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir. A non-empty
// passphrase seals the private key at rest.
func NewIdentityFileStore(dir, passphrase string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir, passphrase: passphrase}
}

// SaveDeviceIdentity writes the identity document.
func (s *IdentityFileStore) SaveDeviceIdentity(id domain.DeviceIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := identityDoc{
		DeviceID:    id.DeviceID.String(),
		PublicKey:   crypto.B64(id.PublicKey.Slice()),
		CreatedAtMs: id.CreatedAtMs,
	}
	if s.passphrase == "" {
		doc.PrivateKey = crypto.B64(id.PrivateKey.Slice())
	} else {
		raw := append([]byte(nil), id.PrivateKey[:]...)
		N, r, p := scryptParamsDefault()
		sealed, err := seal(s.passphrase, raw, N, r, p)
		memzero.Zero(raw)
		if err != nil {
			return fmt.Errorf("sealing private key: %w", err)
		}
		doc.SealedPrivateKey = sealed
	}
	return saveDoc(filepath.Join(s.dir, idFilename), doc, 0o600)
}

// LoadDeviceIdentity reads the identity document. The stored DeviceID is
// returned as-is, even when it no longer matches the public key.
func (s *IdentityFileStore) LoadDeviceIdentity() (domain.DeviceIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc identityDoc
	found, err := loadDoc(filepath.Join(s.dir, idFilename), &doc)
	if err != nil {
		return domain.DeviceIdentity{}, false, err
	}
	if !found || doc.PublicKey == "" {
		return domain.DeviceIdentity{}, false, nil
	}

	pub, err := crypto.FromB64(doc.PublicKey)
	if err != nil {
		return domain.DeviceIdentity{}, false, fmt.Errorf("decoding public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return domain.DeviceIdentity{}, false, fmt.Errorf("public key: want %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}

	rawPriv, err := s.privateKeyBytes(doc)
	if err != nil {
		return domain.DeviceIdentity{}, false, err
	}
	defer memzero.Zero(rawPriv)

	id := domain.DeviceIdentity{
		DeviceID:    domain.DeviceID(doc.DeviceID),
		CreatedAtMs: doc.CreatedAtMs,
	}
	copy(id.PublicKey[:], pub)
	switch len(rawPriv) {
	case ed25519.SeedSize:
		expanded := ed25519.NewKeyFromSeed(rawPriv)
		copy(id.PrivateKey[:], expanded)
		memzero.Zero(expanded)
	case ed25519.PrivateKeySize:
		copy(id.PrivateKey[:], rawPriv)
	default:
		return domain.DeviceIdentity{}, false, fmt.Errorf("private key: unexpected length %d", len(rawPriv))
	}
	return id, true, nil
}

func (s *IdentityFileStore) privateKeyBytes(doc identityDoc) ([]byte, error) {
	if doc.SealedPrivateKey != nil {
		if s.passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		return open(s.passphrase, doc.SealedPrivateKey)
	}
	b, err := crypto.FromB64(doc.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	return b, nil
}

// Compile-time assertion that IdentityFileStore implements domain.DeviceIdentityStore.
var _ domain.DeviceIdentityStore = (*IdentityFileStore)(nil)
