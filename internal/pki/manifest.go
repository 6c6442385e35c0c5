package pki

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestSuffix is appended to a file path to name its default manifest.
const ManifestSuffix = ".firma.json"

// Manifest records the signature of a file.
type Manifest struct {
	File      string `json:"archivo" yaml:"archivo"`
	Signature string `json:"firma" yaml:"firma"`
	Hash      string `json:"hash" yaml:"hash"`
}

// Report is the outcome of checking a file against its manifest.
// Mismatches are reported here, never as errors.
type Report struct {
	FileValid      bool   `json:"archivo_valido" yaml:"archivo_valido"`
	HashValid      bool   `json:"hash_valido" yaml:"hash_valido"`
	SignatureValid bool   `json:"firma_valida" yaml:"firma_valida"`
	Detail         string `json:"detalle" yaml:"detalle"`
}

// Valid reports whether every check passed.
func (r *Report) Valid() bool {
	return r.FileValid && r.HashValid && r.SignatureValid
}

// SignFile signs the contents of path and returns its manifest.
func (b *Bundle) SignFile(path string) (*Manifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	sig, err := b.Sign(data)
	if err != nil {
		return nil, err
	}

	return &Manifest{
		File:      filepath.Base(path),
		Signature: sig,
		Hash:      sha256Hex(data),
	}, nil
}

// WriteManifest signs path and writes the manifest as indented JSON to dest,
// or to path+ManifestSuffix when dest is empty. It returns the manifest location.
func (b *Bundle) WriteManifest(path, dest string) (string, *Manifest, error) {
	m, err := b.SignFile(path)
	if err != nil {
		return "", nil, err
	}

	if dest == "" {
		dest = path + ManifestSuffix
	}

	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return dest, m, nil
}

// VerifyFile checks a base64 signature over the contents of path.
func (b *Bundle) VerifyFile(path, signature string) (bool, error) {
	data, err := readFile(path)
	if err != nil {
		return false, err
	}
	return b.Verify(data, signature), nil
}

// VerifyManifest checks file name, SHA-256 hash and signature of filePath against
// the manifest at manifestPath. Missing files and unreadable manifests are errors;
// content mismatches are reported in the Report.
func (b *Bundle) VerifyManifest(filePath, manifestPath string) (*Report, error) {
	data, err := readFile(filePath)
	if err != nil {
		return nil, err
	}

	raw, err := readFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestInvalid, err)
	}

	if err := b.load(); err != nil {
		return nil, err
	}

	report := &Report{
		FileValid:      filepath.Base(filePath) == m.File,
		HashValid:      sha256Hex(data) == m.Hash,
		SignatureValid: b.Verify(data, m.Signature),
	}
	report.Detail = describe(report)

	return report, nil
}

func describe(r *Report) string {
	if r.Valid() {
		return "all checks passed"
	}

	var failed []string
	if !r.FileValid {
		failed = append(failed, "file name")
	}
	if !r.HashValid {
		failed = append(failed, "SHA-256 hash")
	}
	if !r.SignatureValid {
		failed = append(failed, "signature")
	}
	return "failed checks: " + strings.Join(failed, ", ")
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
