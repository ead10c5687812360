package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatelink/internal/crypto"
	"gatelink/internal/domain"
)

// ErrEmptyPayload is returned when asked to sign nothing.
var ErrEmptyPayload = errors.New("identity: empty payload")

// Service manages device identity creation and signing using a backing store.
type Service struct {
	store  domain.DeviceIdentityStore
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cached *domain.DeviceIdentity
}

// New returns an identity service backed by the given store.
func New(s domain.DeviceIdentityStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger, now: time.Now}
}

// LoadOrCreate returns the persisted identity, creating and saving a fresh
// one if none exists. The result is cached for the life of the Service.
func (s *Service) LoadOrCreate() (domain.DeviceIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}

	id, ok, err := s.store.LoadDeviceIdentity()
	if err != nil {
		return domain.DeviceIdentity{}, fmt.Errorf("loading device identity: %w", err)
	}
	if ok {
		derived := crypto.DeriveDeviceID(id.PublicKey.Slice())
		if id.DeviceID != derived {
			s.logger.Warn("stored device id does not match public key, rewriting",
				"stored", id.DeviceID, "derived", derived)
			id.DeviceID = derived
			if err := s.store.SaveDeviceIdentity(id); err != nil {
				return domain.DeviceIdentity{}, fmt.Errorf("saving healed device identity: %w", err)
			}
		}
		s.cached = &id
		return id, nil
	}

	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.DeviceIdentity{}, fmt.Errorf("generating device key: %w", err)
	}
	id = domain.DeviceIdentity{
		DeviceID:    crypto.DeriveDeviceID(pub.Slice()),
		PublicKey:   pub,
		PrivateKey:  priv,
		CreatedAtMs: s.now().UnixMilli(),
	}
	if err := s.store.SaveDeviceIdentity(id); err != nil {
		return domain.DeviceIdentity{}, fmt.Errorf("saving device identity: %w", err)
	}
	s.logger.Info("created device identity", "device_id", id.DeviceID)
	s.cached = &id
	return id, nil
}

// Sign returns the unpadded base64url Ed25519 signature of payload.
func (s *Service) Sign(payload []byte, id domain.DeviceIdentity) (string, error) {
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}
	if id.PrivateKey == (domain.Ed25519Private{}) {
		return "", errors.New("identity: missing private key")
	}
	return crypto.B64URL(crypto.SignEd25519(id.PrivateKey, payload)), nil
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
