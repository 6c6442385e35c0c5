package pki

import (
	"crypto/sha256"
	"crypto/x509"
	"time"

	"github.com/mr-tron/base58"
)

// Info is the metadata extracted from a SAT e.firma / CSD certificate subject.
type Info struct {
	CompanyRFC        string    `json:"rfc_empresa,omitempty" yaml:"rfc_empresa,omitempty"`
	RepresentativeRFC string    `json:"rfc_representante,omitempty" yaml:"rfc_representante,omitempty"`
	LegalName         string    `json:"razon_social,omitempty" yaml:"razon_social,omitempty"`
	Email             string    `json:"email,omitempty" yaml:"email,omitempty"`
	Serial            string    `json:"serie" yaml:"serie"`
	CertificateNumber string    `json:"no_certificado,omitempty" yaml:"no_certificado,omitempty"`
	NotBefore         time.Time `json:"valido_desde" yaml:"valido_desde"`
	NotAfter          time.Time `json:"valido_hasta" yaml:"valido_hasta"`
	Fingerprint       string    `json:"huella" yaml:"huella"`
}

// ValidAt reports whether t falls inside the certificate validity window.
func (i *Info) ValidAt(t time.Time) bool {
	return !t.Before(i.NotBefore) && !t.After(i.NotAfter)
}

func newInfo(cert *x509.Certificate) *Info {
	company, representative := ExtractRFCs(cert)
	legalName, _ := SubjectAttribute(cert, OIDCommonName)
	email, _ := SubjectAttribute(cert, OIDEmailAddress)
	sum := sha256.Sum256(cert.Raw)

	return &Info{
		CompanyRFC:        company,
		RepresentativeRFC: representative,
		LegalName:         legalName,
		Email:             email,
		Serial:            cert.SerialNumber.String(),
		CertificateNumber: certificateNumber(cert),
		NotBefore:         cert.NotBefore.UTC(),
		NotAfter:          cert.NotAfter.UTC(),
		Fingerprint:       base58.Encode(sum[:]),
	}
}

// certificateNumber decodes the SAT certificate number, which is stored as the
// ASCII digits of the serial number bytes. Serials in any other form yield "".
func certificateNumber(cert *x509.Certificate) string {
	raw := cert.SerialNumber.Bytes()
	if len(raw) == 0 {
		return ""
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return string(raw)
}
