package models

import "time"

// TicketFields is the identity and attendance data captured at issuance.
type TicketFields struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	CitizenID string `json:"citizen_id"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD
	Gender    string `json:"gender"`
	District  string `json:"district"`
	City      string `json:"city"`
}

// IssuedTicket is the bound output of a single issuance.
// QRPayload goes to the holder, ServerPayload stays with the issuer under Ref.
type IssuedTicket struct {
	Ref           string    `json:"ticket_ref"`
	QRPayload     string    `json:"qr_payload"`
	ServerPayload string    `json:"server_payload"`
	QRImage       string    `json:"qr_image"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Reason explains why a verification failed.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonTamperedOrForged Reason = "TAMPERED_OR_FORGED"
	ReasonBindingMismatch  Reason = "BINDING_MISMATCH"
	ReasonExpired          Reason = "EXPIRED"
)

type VerificationResult struct {
	Valid  bool          `json:"valid"`
	Reason Reason        `json:"reason,omitempty"`
	Fields *TicketFields `json:"fields,omitempty"`
}
