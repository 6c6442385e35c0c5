package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/civir-gex/sgextools/internal/models"
	"github.com/civir-gex/sgextools/internal/store"
)

var _ store.CertificateStore = (*CertificateStore)(nil)

// CertificateStore is an in-memory implementation of store.CertificateStore for development and testing
type CertificateStore struct {
	mu    sync.RWMutex
	certs map[string]*models.Certificate // indexed by company RFC
}

func NewCertificateStore() *CertificateStore {
	return &CertificateStore{
		certs: make(map[string]*models.Certificate),
	}
}

func (s *CertificateStore) Get(ctx context.Context, rfc string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, exists := s.certs[rfc]
	if !exists {
		return nil, store.ErrCertNotFound
	}

	// Return a copy to avoid external modifications
	c := *cert
	return &c, nil
}

func (s *CertificateStore) Create(ctx context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.certs[cert.CompanyRFC]; exists {
		return store.ErrCertAlreadyExists
	}

	c := *cert
	s.certs[cert.CompanyRFC] = &c
	return nil
}

func (s *CertificateStore) List(ctx context.Context) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Certificate, 0, len(s.certs))
	for _, cert := range s.certs {
		c := *cert
		result = append(result, &c)
	}

	slices.SortFunc(result, func(a, b *models.Certificate) int {
		return strings.Compare(a.CompanyRFC, b.CompanyRFC)
	})
	return result, nil
}

func (s *CertificateStore) Delete(ctx context.Context, rfc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.certs[rfc]; !exists {
		return store.ErrCertNotFound
	}

	delete(s.certs, rfc)
	return nil
}
