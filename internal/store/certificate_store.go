package store

import (
	"context"
	"errors"

	"github.com/civir-gex/sgextools/internal/models"
)

// CertificateStore persists registered SAT certificates keyed by company RFC.
type CertificateStore interface {
	// Get retrieves a certificate by company RFC
	Get(ctx context.Context, rfc string) (*models.Certificate, error)

	// Create stores a new certificate, failing with ErrCertAlreadyExists when the RFC is taken
	Create(ctx context.Context, cert *models.Certificate) error

	// List returns all certificates ordered by company RFC
	List(ctx context.Context) ([]*models.Certificate, error)

	// Delete removes a certificate by company RFC
	Delete(ctx context.Context, rfc string) error
}

var (
	ErrCertNotFound      = errors.New("certificate not found")
	ErrCertAlreadyExists = errors.New("certificate already exists")
	// ErrCertInvalid is returned when a certificate field does not fit the store.
	ErrCertInvalid = errors.New("certificate cannot be stored")
)
