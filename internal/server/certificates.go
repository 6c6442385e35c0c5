package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	httpmw "github.com/civir-gex/sgextools/internal/http"
	"github.com/civir-gex/sgextools/internal/pki"
	"github.com/civir-gex/sgextools/internal/store"
)

const (
	maxUploadMemory = 4 << 20
	maxUploadFile   = 1 << 20
)

func (s *Server) registerCertificate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		httpmw.WriteError(w, http.StatusBadRequest, "multipart form with cer, key and pwd expected")
		return
	}

	cer, err := formFile(r, "cer")
	if err != nil {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if cer == nil {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, "cer file is required")
		return
	}
	key, err := formFile(r, "key")
	if err != nil {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	bundle, err := pki.Load(cer, key, r.FormValue("pwd"))
	if err != nil {
		s.rejectCertificate(w, r, err)
		return
	}
	cert, err := bundle.Record()
	if err != nil {
		s.rejectCertificate(w, r, err)
		return
	}

	log := s.logs.SAT.With().Str("rfc", cert.CompanyRFC).Logger()
	if err := s.certs.Create(r.Context(), cert); err != nil {
		if errors.Is(err, store.ErrCertAlreadyExists) {
			log.Warn().Msg("Certificate already registered")
			httpmw.WriteError(w, http.StatusConflict, fmt.Sprintf("certificate for %s already registered", cert.CompanyRFC))
			return
		}
		if errors.Is(err, store.ErrCertInvalid) {
			log.Warn().Err(err).Msg("Certificate rejected by store")
			httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to store certificate")
		httpmw.WriteError(w, http.StatusInternalServerError, "failed to store certificate")
		return
	}

	s.metrics.CertificatesRegistered.Add(r.Context(), 1)
	log.Info().
		Str("serie", cert.Serial).
		Bool("firma", bundle.CanSign()).
		Time("valido_hasta", cert.NotAfter).
		Msg("Certificate registered")

	httpmw.WriteJSON(w, http.StatusCreated, cert)
}

func (s *Server) rejectCertificate(w http.ResponseWriter, r *http.Request, err error) {
	s.metrics.CertificatesRejected.Add(r.Context(), 1)
	s.logs.SAT.Warn().Err(err).Msg("Certificate upload rejected")
	httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
}

func (s *Server) listCertificates(w http.ResponseWriter, r *http.Request) {
	certs, err := s.certs.List(r.Context())
	if err != nil {
		s.logs.SAT.Error().Err(err).Msg("Failed to list certificates")
		httpmw.WriteError(w, http.StatusInternalServerError, "failed to list certificates")
		return
	}

	httpmw.WriteJSON(w, http.StatusOK, certs)
}

func (s *Server) getCertificate(w http.ResponseWriter, r *http.Request) {
	rfc := r.PathValue("rfc")

	cert, err := s.certs.Get(r.Context(), rfc)
	if err != nil {
		if errors.Is(err, store.ErrCertNotFound) {
			httpmw.WriteError(w, http.StatusNotFound, fmt.Sprintf("certificate for %s not found", rfc))
			return
		}
		s.logs.SAT.Error().Err(err).Str("rfc", rfc).Msg("Failed to get certificate")
		httpmw.WriteError(w, http.StatusInternalServerError, "failed to get certificate")
		return
	}

	httpmw.WriteJSON(w, http.StatusOK, cert)
}

func (s *Server) deleteCertificate(w http.ResponseWriter, r *http.Request) {
	rfc := r.PathValue("rfc")

	if err := s.certs.Delete(r.Context(), rfc); err != nil {
		if errors.Is(err, store.ErrCertNotFound) {
			httpmw.WriteError(w, http.StatusNotFound, fmt.Sprintf("certificate for %s not found", rfc))
			return
		}
		s.logs.SAT.Error().Err(err).Str("rfc", rfc).Msg("Failed to delete certificate")
		httpmw.WriteError(w, http.StatusInternalServerError, "failed to delete certificate")
		return
	}

	s.logs.SAT.Info().Str("rfc", rfc).Msg("Certificate deleted")
	w.WriteHeader(http.StatusNoContent)
}

// formFile reads an optional uploaded file, returning nil when the field is absent.
func formFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadFile+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	if len(data) > maxUploadFile {
		return nil, fmt.Errorf("%s exceeds %d bytes", field, maxUploadFile)
	}
	return data, nil
}
