package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"
)

const testPassword = "12345678a"

var (
	keysOnce sync.Once
	testKeys [2]*rsa.PrivateKey
)

func rsaKey(t *testing.T, i int) *rsa.PrivateKey {
	t.Helper()
	keysOnce.Do(func() {
		for n := range testKeys {
			key, err := rsa.GenerateKey(rand.Reader, 2048)
			if err != nil {
				panic(err)
			}
			testKeys[n] = key
		}
	})
	return testKeys[i]
}

type certOptions struct {
	commonName string
	uniqueID   string
	email      string
	serial     *big.Int
}

func defaultCertOptions() certOptions {
	return certOptions{
		commonName: "EMPRESA DEMO SA DE CV",
		uniqueID:   "ABC123456XYZ / DEF987654UVW",
		email:      "firma@empresa.example",
		serial:     new(big.Int).SetBytes([]byte("30001000000500003416")),
	}
}

// createCertificate returns a self-signed DER certificate for key.
func createCertificate(t *testing.T, key *rsa.PrivateKey, opts certOptions) []byte {
	t.Helper()

	var extra []pkix.AttributeTypeAndValue
	if opts.uniqueID != "" {
		extra = append(extra, pkix.AttributeTypeAndValue{Type: OIDUniqueIdentifier, Value: opts.uniqueID})
	}
	if opts.email != "" {
		extra = append(extra, pkix.AttributeTypeAndValue{Type: OIDEmailAddress, Value: opts.email})
	}

	template := &x509.Certificate{
		SerialNumber: opts.serial,
		Subject: pkix.Name{
			CommonName: opts.commonName,
			ExtraNames: extra,
		},
		NotBefore: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	return der
}

// encryptKey returns key as DER encoded, password protected PKCS#8.
func encryptKey(t *testing.T, key *rsa.PrivateKey, password string) []byte {
	t.Helper()
	der, err := pkcs8.MarshalPrivateKey(key, []byte(password), &pkcs8.Opts{
		Cipher: pkcs8.AES256CBC,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       16,
			IterationCount: 1000,
			HMACHash:       crypto.SHA256,
		},
	})
	require.NoError(t, err)
	return der
}

// writeBundleFiles writes cer, key and password files to a temp dir.
func writeBundleFiles(t *testing.T, cer, key []byte, password string) Source {
	t.Helper()
	dir := t.TempDir()

	src := Source{
		CerPath:      filepath.Join(dir, "firma.cer"),
		KeyPath:      filepath.Join(dir, "firma.key"),
		PasswordPath: filepath.Join(dir, "key.txt"),
	}
	require.NoError(t, os.WriteFile(src.CerPath, cer, 0o600))
	require.NoError(t, os.WriteFile(src.KeyPath, key, 0o600))
	require.NoError(t, os.WriteFile(src.PasswordPath, []byte(password+"\n"), 0o600))
	return src
}

func loadTestBundle(t *testing.T) *Bundle {
	t.Helper()
	key := rsaKey(t, 0)
	b, err := Load(createCertificate(t, key, defaultCertOptions()), encryptKey(t, key, testPassword), testPassword)
	require.NoError(t, err)
	return b
}
