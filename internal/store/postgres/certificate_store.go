package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civir-gex/sgextools/internal/models"
	"github.com/civir-gex/sgextools/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ store.CertificateStore = (*CertificateStore)(nil)

const certificateColumns = `
	rfc_empresa, rfc_representante, razon_social, email,
	serie, valido_desde, valido_hasta, pwd`

// CertificateStore implements store.CertificateStore on the certificados table.
type CertificateStore struct {
	pool *pgxpool.Pool
}

func NewCertificateStore(pool *pgxpool.Pool) *CertificateStore {
	return &CertificateStore{pool: pool}
}

func (s *CertificateStore) Get(ctx context.Context, rfc string) (*models.Certificate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificados WHERE rfc_empresa = $1`, rfc)

	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrCertNotFound
		}
		return nil, fmt.Errorf("failed to get certificate: %w", mapPostgresError(err))
	}

	return cert, nil
}

func (s *CertificateStore) Create(ctx context.Context, cert *models.Certificate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO certificados (`+certificateColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cert.CompanyRFC,
		nullable(cert.RepresentativeRFC),
		nullable(cert.LegalName),
		nullable(cert.Email),
		cert.Serial,
		cert.NotBefore,
		cert.NotAfter,
		nullable(cert.Password),
	)
	if err != nil {
		err = mapPostgresError(err)
		if errors.Is(err, store.ErrCertAlreadyExists) {
			return store.ErrCertAlreadyExists
		}
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	return nil
}

func (s *CertificateStore) List(ctx context.Context) ([]*models.Certificate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+certificateColumns+` FROM certificados ORDER BY rfc_empresa`)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", mapPostgresError(err))
	}
	defer rows.Close()

	certs := []*models.Certificate{}
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate certificates: %w", mapPostgresError(err))
	}

	return certs, nil
}

func (s *CertificateStore) Delete(ctx context.Context, rfc string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM certificados WHERE rfc_empresa = $1`, rfc)
	if err != nil {
		return fmt.Errorf("failed to delete certificate: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrCertNotFound
	}
	return nil
}

func scanCertificate(row pgx.Row) (*models.Certificate, error) {
	// every column but the key is nullable, rows may come from the generic bootstrap
	var (
		cert                                          models.Certificate
		representative, name, email, serial, password *string
		notBefore, notAfter                           *time.Time
	)

	err := row.Scan(
		&cert.CompanyRFC,
		&representative,
		&name,
		&email,
		&serial,
		&notBefore,
		&notAfter,
		&password,
	)
	if err != nil {
		return nil, err
	}

	cert.RepresentativeRFC = deref(representative)
	cert.LegalName = deref(name)
	cert.Email = deref(email)
	cert.Serial = deref(serial)
	cert.Password = deref(password)
	if notBefore != nil {
		cert.NotBefore = notBefore.UTC()
	}
	if notAfter != nil {
		cert.NotAfter = notAfter.UTC()
	}

	return &cert, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
