package pki

import (
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/require"
)

func parsedCert(t *testing.T, opts certOptions) *x509.Certificate {
	t.Helper()
	cert, err := x509.ParseCertificate(createCertificate(t, rsaKey(t, 0), opts))
	require.NoError(t, err)
	return cert
}

func TestValidRFC(t *testing.T) {
	tests := []struct {
		rfc  string
		want bool
	}{
		{"ABC123456XYZ", true},
		{"ABCD123456XY1", true},
		{"ÑA&123456AB9", true},
		{"AB123456XYZ", false},
		{"ABCDE123456XYZ", false},
		{"abc123456XYZ", false},
		{"ABC12345XYZ", false},
		{"ABC123456XY", false},
		{" ABC123456XYZ", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.rfc, func(t *testing.T) {
			require.Equal(t, tt.want, ValidRFC(tt.rfc))
		})
	}
}

func TestExtractRFCs(t *testing.T) {
	tests := []struct {
		name               string
		uniqueID           string
		wantCompany        string
		wantRepresentative string
	}{
		{
			name:               "company and representative",
			uniqueID:           "ABC123456XYZ/DEF987654UVW",
			wantCompany:        "ABC123456XYZ",
			wantRepresentative: "DEF987654UVW",
		},
		{
			name:               "values are trimmed",
			uniqueID:           " ABC123456XYZ /  DEF987654UVW ",
			wantCompany:        "ABC123456XYZ",
			wantRepresentative: "DEF987654UVW",
		},
		{
			name:        "company only",
			uniqueID:    "ABCD123456XY1",
			wantCompany: "ABCD123456XY1",
		},
		{
			name:        "malformed representative is skipped",
			uniqueID:    "ABC123456XYZ/not-an-rfc",
			wantCompany: "ABC123456XYZ",
		},
		{
			name:               "malformed company shifts the next valid value",
			uniqueID:           "bad/ABC123456XYZ/DEF987654UVW",
			wantCompany:        "ABC123456XYZ",
			wantRepresentative: "DEF987654UVW",
		},
		{
			name:     "nothing valid",
			uniqueID: "foo/bar",
		},
		{
			name: "attribute absent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultCertOptions()
			opts.uniqueID = tt.uniqueID
			company, representative := ExtractRFCs(parsedCert(t, opts))
			require.Equal(t, tt.wantCompany, company)
			require.Equal(t, tt.wantRepresentative, representative)
		})
	}
}

func TestSubjectAttribute(t *testing.T) {
	cert := parsedCert(t, defaultCertOptions())

	cn, ok := SubjectAttribute(cert, OIDCommonName)
	require.True(t, ok)
	require.Equal(t, "EMPRESA DEMO SA DE CV", cn)

	email, ok := SubjectAttribute(cert, OIDEmailAddress)
	require.True(t, ok)
	require.Equal(t, "firma@empresa.example", email)

	opts := defaultCertOptions()
	opts.email = ""
	_, ok = SubjectAttribute(parsedCert(t, opts), OIDEmailAddress)
	require.False(t, ok)

	t.Run("trims surrounding spaces", func(t *testing.T) {
		opts := defaultCertOptions()
		opts.commonName = "  EMPRESA DEMO SA DE CV  "
		opts.email = " firma@empresa.example "
		cert := parsedCert(t, opts)

		cn, ok := SubjectAttribute(cert, OIDCommonName)
		require.True(t, ok)
		require.Equal(t, "EMPRESA DEMO SA DE CV", cn)

		email, ok := SubjectAttribute(cert, OIDEmailAddress)
		require.True(t, ok)
		require.Equal(t, "firma@empresa.example", email)
	})
}
