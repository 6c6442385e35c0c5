package commands

import (
	"fmt"

	"github.com/civir-gex/sgextools/internal/pki"
)

type CertCmd struct {
	Info       CertInfoCmd       `cmd:"" help:"Show certificate metadata"`
	Sign       CertSignCmd       `cmd:"" help:"Sign a message with the private key"`
	Verify     CertVerifyCmd     `cmd:"" help:"Verify a message signature with the certificate"`
	SignFile   CertSignFileCmd   `cmd:"" name:"sign-file" help:"Sign a file and write its manifest"`
	VerifyFile CertVerifyFileCmd `cmd:"" name:"verify-file" help:"Verify a file against its manifest"`
}

// BundleFlags locate the certificate, key and password files.
type BundleFlags struct {
	Cer          string `help:"certificate file (.cer), DER or PEM" required:"" type:"existingfile" env:"SGEX_CER"`
	Key          string `help:"encrypted private key file (.key)" type:"existingfile" env:"SGEX_KEY"`
	PasswordFile string `help:"file holding the key password on its first line" type:"existingfile" env:"SGEX_KEY_PASSWORD_FILE"`
}

func (b BundleFlags) open() *pki.Bundle {
	return pki.Open(pki.Source{
		CerPath:      b.Cer,
		KeyPath:      b.Key,
		PasswordPath: b.PasswordFile,
	})
}

type CertInfoCmd struct {
	BundleFlags
	OutputFlags
}

func (c *CertInfoCmd) Run(globals *Globals) error {
	info, err := c.open().Info()
	if err != nil {
		return err
	}
	return c.print(globals.out(), info)
}

// SignatureOutput is printed by cert sign.
type SignatureOutput struct {
	Signature string `json:"firma" yaml:"firma"`
}

type CertSignCmd struct {
	BundleFlags
	OutputFlags
	Message string `arg:"" help:"message to sign"`
}

func (c *CertSignCmd) Run(globals *Globals) error {
	sig, err := c.open().Sign([]byte(c.Message))
	if err != nil {
		return err
	}
	return c.print(globals.out(), SignatureOutput{Signature: sig})
}

// VerificationOutput is printed by cert verify.
type VerificationOutput struct {
	Valid bool `json:"valida" yaml:"valida"`
}

type CertVerifyCmd struct {
	BundleFlags
	OutputFlags
	Message   string `arg:"" help:"signed message"`
	Signature string `arg:"" help:"base64 signature"`
}

func (c *CertVerifyCmd) Run(globals *Globals) error {
	b := c.open()
	// a certificate that cannot be loaded is an error, not a failed verification
	if _, err := b.Certificate(); err != nil {
		return err
	}
	return c.print(globals.out(), VerificationOutput{Valid: b.Verify([]byte(c.Message), c.Signature)})
}

// ManifestOutput is printed by cert sign-file.
type ManifestOutput struct {
	Path     string        `json:"ruta" yaml:"ruta"`
	Manifest *pki.Manifest `json:"manifiesto" yaml:"manifiesto"`
}

type CertSignFileCmd struct {
	BundleFlags
	OutputFlags
	File     string `arg:"" help:"file to sign" type:"existingfile"`
	Manifest string `help:"manifest destination, defaults to <file>.firma.json"`
}

func (c *CertSignFileCmd) Run(globals *Globals) error {
	path, m, err := c.open().WriteManifest(c.File, c.Manifest)
	if err != nil {
		return err
	}
	return c.print(globals.out(), ManifestOutput{Path: path, Manifest: m})
}

type CertVerifyFileCmd struct {
	BundleFlags
	OutputFlags
	File     string `arg:"" help:"file to verify" type:"existingfile"`
	Manifest string `help:"manifest to check against, defaults to <file>.firma.json"`
	Strict   bool   `help:"exit with an error when any check fails"`
}

func (c *CertVerifyFileCmd) Run(globals *Globals) error {
	manifest := c.Manifest
	if manifest == "" {
		manifest = c.File + pki.ManifestSuffix
	}

	report, err := c.open().VerifyManifest(c.File, manifest)
	if err != nil {
		return err
	}
	if err := c.print(globals.out(), report); err != nil {
		return err
	}

	if c.Strict && !report.Valid() {
		return fmt.Errorf("verification failed: %s", report.Detail)
	}
	return nil
}
