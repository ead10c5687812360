package store

import (
	"path/filepath"
	"sync"

	"gatelink/internal/domain"
)

const endpointFile = "gateway.json"

// EndpointFileStore persists the last gateway endpoint to disk.
type EndpointFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewEndpointFileStore returns an EndpointFileStore rooted at dir.
func NewEndpointFileStore(dir string) *EndpointFileStore {
	return &EndpointFileStore{dir: dir}
}

// SaveEndpoint stores endpoint, replacing any previous one.
func (s *EndpointFileStore) SaveEndpoint(endpoint domain.GatewayEndpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, endpointFile)
	return saveDoc(path, endpoint, 0o600)
}

// LoadEndpoint returns the stored endpoint and whether one was present.
func (s *EndpointFileStore) LoadEndpoint() (domain.GatewayEndpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, endpointFile)
	var ep domain.GatewayEndpoint
	found, err := loadDoc(path, &ep)
	if err != nil {
		return domain.GatewayEndpoint{}, false, err
	}
	if !found || ep.IsZero() {
		return domain.GatewayEndpoint{}, false, nil
	}
	return ep, true, nil
}

// Compile-time assertion that EndpointFileStore implements domain.EndpointStore.
var _ domain.EndpointStore = (*EndpointFileStore)(nil)
