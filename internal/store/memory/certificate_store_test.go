package memory

import (
	"context"
	"testing"
	"time"

	"github.com/civir-gex/sgextools/internal/models"
	"github.com/civir-gex/sgextools/internal/store"
	"github.com/stretchr/testify/require"
)

func newCert(rfc string) *models.Certificate {
	return &models.Certificate{
		CompanyRFC:        rfc,
		RepresentativeRFC: "DEF987654UVW",
		LegalName:         "EMPRESA DEMO SA DE CV",
		Email:             "firma@empresa.example",
		Serial:            "123456789",
		NotBefore:         time.Now().Add(-time.Hour),
		NotAfter:          time.Now().Add(365 * 24 * time.Hour),
		Password:          "12345678a",
	}
}

func TestNewCertificateStore(t *testing.T) {
	store := NewCertificateStore()
	require.NotNil(t, store)
}

func TestCertificateStore_Create(t *testing.T) {
	t.Run("create new certificate", func(t *testing.T) {
		st := NewCertificateStore()
		ctx := context.Background()

		require.NoError(t, st.Create(ctx, newCert("ABC123456XYZ")))

		got, err := st.Get(ctx, "ABC123456XYZ")
		require.NoError(t, err)
		require.Equal(t, "EMPRESA DEMO SA DE CV", got.LegalName)
		require.Equal(t, "12345678a", got.Password)
		require.False(t, got.IsExpired())
	})

	t.Run("create duplicate certificate returns error", func(t *testing.T) {
		st := NewCertificateStore()
		ctx := context.Background()

		require.NoError(t, st.Create(ctx, newCert("ABC123456XYZ")))

		err := st.Create(ctx, newCert("ABC123456XYZ"))
		require.ErrorIs(t, err, store.ErrCertAlreadyExists)
	})

	t.Run("stored copy is isolated from caller", func(t *testing.T) {
		st := NewCertificateStore()
		ctx := context.Background()

		cert := newCert("ABC123456XYZ")
		require.NoError(t, st.Create(ctx, cert))
		cert.LegalName = "changed"

		got, err := st.Get(ctx, "ABC123456XYZ")
		require.NoError(t, err)
		require.Equal(t, "EMPRESA DEMO SA DE CV", got.LegalName)
	})
}

func TestCertificateStore_Get(t *testing.T) {
	st := NewCertificateStore()

	_, err := st.Get(context.Background(), "NOPE010101AAA")
	require.ErrorIs(t, err, store.ErrCertNotFound)
}

func TestCertificateStore_List(t *testing.T) {
	st := NewCertificateStore()
	ctx := context.Background()

	empty, err := st.List(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	require.NoError(t, st.Create(ctx, newCert("XYZ010101AAA")))
	require.NoError(t, st.Create(ctx, newCert("ABC123456XYZ")))

	certs, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	require.Equal(t, "ABC123456XYZ", certs[0].CompanyRFC)
	require.Equal(t, "XYZ010101AAA", certs[1].CompanyRFC)
}

func TestCertificateStore_Delete(t *testing.T) {
	st := NewCertificateStore()
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, newCert("ABC123456XYZ")))
	require.NoError(t, st.Delete(ctx, "ABC123456XYZ"))

	_, err := st.Get(ctx, "ABC123456XYZ")
	require.ErrorIs(t, err, store.ErrCertNotFound)

	require.ErrorIs(t, st.Delete(ctx, "ABC123456XYZ"), store.ErrCertNotFound)
}
