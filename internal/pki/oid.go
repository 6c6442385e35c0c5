package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"regexp"
	"strings"
)

var (
	// OIDCommonName carries the legal name of the certificate holder.
	OIDCommonName = asn1.ObjectIdentifier{2, 5, 4, 3}

	// OIDUniqueIdentifier (x500UniqueIdentifier) carries the RFC values, separated by "/".
	// The first value is the company RFC, the second the legal representative.
	OIDUniqueIdentifier = asn1.ObjectIdentifier{2, 5, 4, 45}

	// OIDEmailAddress is the PKCS#9 emailAddress subject attribute.
	OIDEmailAddress = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}
)

var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}$`)

// ValidRFC reports whether s is a well formed RFC (3-4 letters, yymmdd, 3 char homoclave).
func ValidRFC(s string) bool {
	return rfcPattern.MatchString(s)
}

// SubjectAttribute returns the last value of oid in the certificate subject,
// without surrounding white space.
func SubjectAttribute(cert *x509.Certificate, oid asn1.ObjectIdentifier) (string, bool) {
	var (
		value string
		found bool
	)
	for _, atv := range subjectNames(cert) {
		if atv.Type.Equal(oid) {
			value, found = strings.TrimSpace(attributeString(atv)), true
		}
	}
	return value, found
}

// ExtractRFCs returns the company and representative RFCs from the subject.
// Values that are not valid RFCs are skipped; missing ones are returned as "".
func ExtractRFCs(cert *x509.Certificate) (company, representative string) {
	var valid []string
	for _, atv := range subjectNames(cert) {
		if !atv.Type.Equal(OIDUniqueIdentifier) {
			continue
		}
		for part := range strings.SplitSeq(attributeString(atv), "/") {
			if part = strings.TrimSpace(part); ValidRFC(part) {
				valid = append(valid, part)
			}
		}
	}

	if len(valid) > 0 {
		company = valid[0]
	}
	if len(valid) > 1 {
		representative = valid[1]
	}
	return company, representative
}

func subjectNames(cert *x509.Certificate) []pkix.AttributeTypeAndValue {
	if len(cert.Subject.Names) > 0 {
		return cert.Subject.Names
	}
	// certificates built in memory only populate ExtraNames
	return cert.Subject.ExtraNames
}

func attributeString(atv pkix.AttributeTypeAndValue) string {
	if s, ok := atv.Value.(string); ok {
		return s
	}
	return fmt.Sprint(atv.Value)
}
