package models

import (
	"time"
)

// SatRequestStatus is the lifecycle state of a bulk download request to the SAT.
type SatRequestStatus string

const (
	SatRequestPending  SatRequestStatus = "pendiente"
	SatRequestAccepted SatRequestStatus = "aceptada"
	SatRequestFinished SatRequestStatus = "terminada"
	SatRequestRejected SatRequestStatus = "rechazada"
)

// SatRequest is a download request for invoices issued between From and To.
// Stored in the solicitudes_sat table.
type SatRequest struct {
	ID          string           `json:"id"`
	From        time.Time        `json:"fi"`
	To          time.Time        `json:"ff"`
	RequestedAt time.Time        `json:"solicitado"`
	Kind        string           `json:"tipo,omitempty"`
	Status      SatRequestStatus `json:"estado"`
}
