package pki

import (
	"errors"

	"github.com/civir-gex/sgextools/internal/models"
)

var ErrMissingRFC = errors.New("certificate subject has no valid company RFC")

// Record returns the persistence record for the bundle certificate.
// A certificate without a company RFC cannot be registered.
func (b *Bundle) Record() (*models.Certificate, error) {
	info, err := b.Info()
	if err != nil {
		return nil, err
	}
	if info.CompanyRFC == "" {
		return nil, ErrMissingRFC
	}

	return &models.Certificate{
		CompanyRFC:        info.CompanyRFC,
		RepresentativeRFC: info.RepresentativeRFC,
		LegalName:         info.LegalName,
		Email:             info.Email,
		Serial:            info.Serial,
		NotBefore:         info.NotBefore,
		NotAfter:          info.NotAfter,
		Password:          b.Password(),
	}, nil
}
