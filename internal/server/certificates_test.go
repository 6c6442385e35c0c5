package server

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/json"
	"fmt"
	"math/big"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/civir-gex/sgextools/internal/models"
	"github.com/civir-gex/sgextools/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"
)

const uploadPassword = "12345678a"

var (
	oidUniqueIdentifier = asn1.ObjectIdentifier{2, 5, 4, 45}
	uploadSerial        = new(big.Int).SetBytes([]byte("30001000000500003416"))
)

type upload struct {
	cer, key []byte
	pwd      string
}

func newUpload(t *testing.T, uniqueID string) upload {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: uploadSerial,
		Subject: pkix.Name{
			CommonName: "EMPRESA DEMO SA DE CV",
			ExtraNames: []pkix.AttributeTypeAndValue{{Type: oidUniqueIdentifier, Value: uniqueID}},
		},
		NotBefore: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}
	cer, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	der, err := pkcs8.MarshalPrivateKey(key, []byte(uploadPassword), &pkcs8.Opts{
		Cipher: pkcs8.AES256CBC,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       16,
			IterationCount: 1000,
			HMACHash:       crypto.SHA256,
		},
	})
	require.NoError(t, err)

	return upload{cer: cer, key: der, pwd: uploadPassword}
}

func (u upload) request(t *testing.T) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, data := range map[string][]byte{"cer": u.cer, "key": u.key} {
		if data == nil {
			continue
		}
		fw, err := mw.CreateFormFile(field, "firma."+field)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	if u.pwd != "" {
		require.NoError(t, mw.WriteField("pwd", u.pwd))
	}
	require.NoError(t, mw.Close())

	return newRequest(http.MethodPost, "/sat/certificados", mw.FormDataContentType(), &body)
}

func TestRegisterCertificate(t *testing.T) {
	ts := newTestServer(t)
	valid := newUpload(t, "ABC123456XYZ / DEF987654UVW")

	w := ts.do(valid.request(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var cert models.Certificate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cert))
	require.Equal(t, "ABC123456XYZ", cert.CompanyRFC)
	require.Equal(t, "DEF987654UVW", cert.RepresentativeRFC)
	require.Equal(t, uploadSerial.String(), cert.Serial)
	require.NotContains(t, w.Body.String(), uploadPassword)

	stored, err := ts.certs.Get(t.Context(), "ABC123456XYZ")
	require.NoError(t, err)
	require.Equal(t, uploadPassword, stored.Password)

	t.Run("duplicate", func(t *testing.T) {
		w := ts.do(valid.request(t))
		require.Equal(t, http.StatusConflict, w.Code)
		require.JSONEq(t, `{"detail":"certificate for ABC123456XYZ already registered"}`, w.Body.String())
	})
}

func TestRegisterCertificate_Rejected(t *testing.T) {
	ts := newTestServer(t)
	valid := newUpload(t, "GHI123456XYZ")
	other := newUpload(t, "GHI123456XYZ")

	tests := []struct {
		name   string
		upload upload
		status int
	}{
		{name: "missing cer", upload: upload{key: valid.key, pwd: valid.pwd}, status: http.StatusUnprocessableEntity},
		{name: "garbage cer", upload: upload{cer: []byte("not a certificate")}, status: http.StatusUnprocessableEntity},
		{name: "wrong password", upload: upload{cer: valid.cer, key: valid.key, pwd: "wrong"}, status: http.StatusUnprocessableEntity},
		{name: "mismatched key", upload: upload{cer: valid.cer, key: other.key, pwd: other.pwd}, status: http.StatusUnprocessableEntity},
		{name: "no company rfc", upload: newUpload(t, "sin rfc"), status: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(tt.upload.request(t))
			require.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		w := ts.do(newRequest(http.MethodPost, "/sat/certificados", "application/json", bytes.NewBufferString(`{}`)))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	certs, err := ts.certs.List(t.Context())
	require.NoError(t, err)
	require.Empty(t, certs)
}

// rejectingStore fails every Create the way the postgres store reports a field
// that does not fit its column.
type rejectingStore struct {
	store.CertificateStore
}

func (rejectingStore) Create(context.Context, *models.Certificate) error {
	return fmt.Errorf("failed to create certificate: %w: value too long for type character varying(255)", store.ErrCertInvalid)
}

func TestRegisterCertificate_StoreRejects(t *testing.T) {
	ts := newTestServer(t)
	ts.handler = New(Config{
		Env:          ts.env,
		Certificates: rejectingStore{ts.certs},
		Tokens:       ts.tokens,
		Metrics:      ts.metrics,
		Logs:         Loggers{Env: zerolog.Nop(), DB: zerolog.Nop(), SAT: zerolog.Nop()},
	}).Handler()

	w := ts.do(newUpload(t, "ABC123456XYZ").request(t))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "value too long")
}

func TestCertificateLookup(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(newUpload(t, "ABC123456XYZ").request(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	t.Run("list", func(t *testing.T) {
		w := ts.do(newRequest(http.MethodGet, "/sat/certificados", "", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var certs []models.Certificate
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &certs))
		require.Len(t, certs, 1)
		require.Equal(t, "ABC123456XYZ", certs[0].CompanyRFC)
	})

	t.Run("get", func(t *testing.T) {
		w := ts.do(newRequest(http.MethodGet, "/sat/certificados/ABC123456XYZ", "", nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = ts.do(newRequest(http.MethodGet, "/sat/certificados/ZZZ999999ZZZ", "", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := ts.do(newRequest(http.MethodDelete, "/sat/certificados/ABC123456XYZ", "", nil))
		require.Equal(t, http.StatusNoContent, w.Code)

		w = ts.do(newRequest(http.MethodDelete, "/sat/certificados/ABC123456XYZ", "", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
