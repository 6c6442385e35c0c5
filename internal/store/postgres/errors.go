package postgres

import (
	"errors"
	"fmt"

	"github.com/civir-gex/sgextools/internal/store"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

const certificatesPrimaryKey = "certificados_pkey"

// mapPostgresError turns a duplicate company RFC into ErrCertAlreadyExists and
// an oversized or missing field into ErrCertInvalid. Anything else is returned
// unchanged.
func mapPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		if pgErr.ConstraintName == certificatesPrimaryKey {
			return fmt.Errorf("%w: %s", store.ErrCertAlreadyExists, pgErr.Detail)
		}
	case pgerrcode.StringDataRightTruncationDataException, pgerrcode.NotNullViolation:
		return fmt.Errorf("%w: %s", store.ErrCertInvalid, pgErr.Message)
	}
	return err
}
