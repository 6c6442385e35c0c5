package models

import (
	"time"
)

// Certificate is a registered SAT certificate, keyed by the company RFC.
// Stored in the certificados table.
type Certificate struct {
	CompanyRFC        string    `json:"rfc_empresa"`
	RepresentativeRFC string    `json:"rfc_representante,omitempty"`
	LegalName         string    `json:"razon_social,omitempty"`
	Email             string    `json:"email,omitempty"`
	Serial            string    `json:"serie"`
	NotBefore         time.Time `json:"valido_desde"`
	NotAfter          time.Time `json:"valido_hasta"`

	// Password unlocks the private key paired with the certificate. Never serialized.
	Password string `json:"-"`
}

// IsExpired returns true if the certificate validity window has ended.
func (c *Certificate) IsExpired() bool {
	return time.Now().After(c.NotAfter)
}
