package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/youmark/pkcs8"
)

var (
	ErrCertificateParse       = errors.New("failed to parse certificate")
	ErrKeyLoad                = errors.New("failed to load private key")
	ErrKeyCertificateMismatch = errors.New("private key does not match certificate")
	ErrSigningKeyRequired     = errors.New("private key and password are required to sign")
	ErrFileNotFound           = errors.New("file not found")
	ErrManifestInvalid        = errors.New("invalid signature manifest")
)

// correspondenceSample is signed with the private key and verified with the
// certificate public key to prove both belong to the same pair.
var correspondenceSample = []byte("test-firma")

// Source names the files backing a lazily loaded Bundle.
// KeyPath and PasswordPath are optional; the password file holds the passphrase on its first line.
type Source struct {
	CerPath      string
	KeyPath      string
	PasswordPath string
}

// Bundle is an X.509 certificate with an optional encrypted private key.
// Loading happens once, on first use, and the result is immutable afterwards,
// so a Bundle is safe for concurrent use.
type Bundle struct {
	src      *Source
	cerRaw   []byte
	keyRaw   []byte
	password string

	once   sync.Once
	loaded *loadedBundle
	err    error
}

type loadedBundle struct {
	cert *x509.Certificate
	key  *rsa.PrivateKey
	info *Info
}

// Load parses the certificate and, when both key and password are given,
// decrypts the key and checks it corresponds to the certificate.
// Certificate and key may be DER or PEM encoded.
func Load(cer, key []byte, password string) (*Bundle, error) {
	b := &Bundle{cerRaw: cer, keyRaw: key, password: password}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

// Open returns a Bundle backed by files. Nothing is read until the bundle is first used.
func Open(src Source) *Bundle {
	return &Bundle{src: &src}
}

func (b *Bundle) load() error {
	b.once.Do(func() {
		b.loaded, b.err = b.init()
	})
	return b.err
}

func (b *Bundle) init() (*loadedBundle, error) {
	if b.src != nil {
		if err := b.readSource(); err != nil {
			return nil, err
		}
	}

	cert, err := parseCertificate(b.cerRaw)
	if err != nil {
		return nil, err
	}

	lb := &loadedBundle{cert: cert, info: newInfo(cert)}

	if len(b.keyRaw) == 0 || b.password == "" {
		return lb, nil
	}

	lb.key, err = parsePrivateKey(b.keyRaw, b.password)
	if err != nil {
		return nil, err
	}

	if err := checkCorrespondence(cert, lb.key); err != nil {
		return nil, err
	}

	return lb, nil
}

func (b *Bundle) readSource() error {
	var err error

	if b.cerRaw, err = readFile(b.src.CerPath); err != nil {
		return err
	}

	if b.src.KeyPath != "" {
		if b.keyRaw, err = readFile(b.src.KeyPath); err != nil {
			return err
		}
	}

	if b.src.PasswordPath != "" {
		data, err := readFile(b.src.PasswordPath)
		if err != nil {
			return err
		}
		line, _, _ := strings.Cut(string(data), "\n")
		b.password = strings.TrimSpace(line)
	}

	return nil
}

// Certificate returns the parsed certificate.
func (b *Bundle) Certificate() (*x509.Certificate, error) {
	if err := b.load(); err != nil {
		return nil, err
	}
	return b.loaded.cert, nil
}

// Info returns the subject metadata of the certificate.
func (b *Bundle) Info() (*Info, error) {
	if err := b.load(); err != nil {
		return nil, err
	}
	info := *b.loaded.info
	return &info, nil
}

// CanSign reports whether the bundle holds a usable private key.
func (b *Bundle) CanSign() bool {
	return b.load() == nil && b.loaded.key != nil
}

// Password returns the key passphrase the bundle was loaded with.
func (b *Bundle) Password() string {
	_ = b.load()
	return b.password
}

// Sign signs message with RSA PKCS#1 v1.5 over SHA-256 and returns the base64 signature.
func (b *Bundle) Sign(message []byte) (string, error) {
	if err := b.load(); err != nil {
		return "", err
	}
	if b.loaded.key == nil {
		return "", ErrSigningKeyRequired
	}

	sig, err := signPKCS1v15(b.loaded.key, message)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature of message against the certificate public key.
// Any failure, including undecodable input, yields false.
func (b *Bundle) Verify(message []byte, signature string) bool {
	if err := b.load(); err != nil {
		return false
	}

	pub, ok := b.loaded.cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCertificateParse)
	}

	cert, err := x509.ParseCertificate(decodePEM(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCertificateParse, err)
	}

	return cert, nil
}

func parsePrivateKey(data []byte, password string) (*rsa.PrivateKey, error) {
	key, err := pkcs8.ParsePKCS8PrivateKeyRSA(decodePEM(data), []byte(password))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyLoad, err)
	}
	return key, nil
}

// checkCorrespondence signs a fixed sample with key and verifies it with the certificate public key.
func checkCorrespondence(cert *x509.Certificate, key *rsa.PrivateKey) error {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: certificate public key is not RSA", ErrKeyCertificateMismatch)
	}

	sig, err := signPKCS1v15(key, correspondenceSample)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyLoad, err)
	}

	digest := sha256.Sum256(correspondenceSample)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return ErrKeyCertificateMismatch
	}

	return nil
}

func signPKCS1v15(key *rsa.PrivateKey, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
}

// decodePEM returns the first PEM block payload, or data unchanged when it is not PEM.
func decodePEM(data []byte) []byte {
	if block, _ := pem.Decode(data); block != nil {
		return block.Bytes
	}
	return data
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
