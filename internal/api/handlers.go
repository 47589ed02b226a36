package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/harrylevesque/qrticket/internal/logging"
	"github.com/harrylevesque/qrticket/internal/models"
	"github.com/harrylevesque/qrticket/internal/qr"
	"github.com/harrylevesque/qrticket/internal/store"
	"github.com/harrylevesque/qrticket/internal/ticket"
)

const maxBodyBytes = 64 << 10

// ImageFiles resolves a ticket reference to its rendered image on disk.
type ImageFiles interface {
	Path(ref string) (string, error)
}

type Handler struct {
	issuer   *ticket.Issuer
	verifier *ticket.Verifier
	store    store.Store
	images   ImageFiles
	log      logging.Logger
}

func NewHandler(iss *ticket.Issuer, v *ticket.Verifier, s store.Store, images ImageFiles, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{issuer: iss, verifier: v, store: s, images: images, log: log}
}

type CreateTicketResponse struct {
	TicketRef     string              `json:"ticket_ref"`
	QRPayload     string              `json:"qr_payload"`
	ServerPayload string              `json:"server_payload"`
	QRURL         string              `json:"qr_url"`
	Ticket        models.TicketFields `json:"ticket"`
}

type VerifyTicketRequest struct {
	QRData     string `json:"qr_data"`
	ServerData string `json:"server_data"`
	TicketRef  string `json:"ticket_ref"`
}

// CreateTicketHandler issues a ticket from form or JSON fields and keeps its
// server payload in the store.
func (h *Handler) CreateTicketHandler(w http.ResponseWriter, r *http.Request) {
	var f models.TicketFields
	if isJSON(r) {
		if err := decodeJSON(w, r, &f); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		f = models.TicketFields{
			FullName:  r.PostForm.Get("full_name"),
			Email:     r.PostForm.Get("email"),
			CitizenID: r.PostForm.Get("citizen_id"),
			BirthDate: r.PostForm.Get("birth_date"),
			Gender:    r.PostForm.Get("gender"),
			District:  r.PostForm.Get("district"),
			City:      r.PostForm.Get("city"),
		}
	}

	ctx := r.Context()
	t, err := h.issuer.Issue(ctx, f)
	if err != nil {
		var ve *ticket.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "invalid ticket field",
				"field":  ve.Field,
				"reason": ve.Reason,
			})
			return
		}
		h.log.Error(ctx, "ticket issuance failed", "error", err)
		http.Error(w, "failed to generate ticket", http.StatusInternalServerError)
		return
	}

	err = h.store.Save(ctx, store.Record{
		Ref:           t.Ref,
		ServerPayload: t.ServerPayload,
		QRImage:       t.QRImage,
		CreatedAt:     t.IssuedAt,
	})
	if err != nil {
		h.log.Error(ctx, "saving ticket failed", "ticket_ref", t.Ref, "error", err)
		http.Error(w, "failed to generate ticket", http.StatusInternalServerError)
		return
	}

	shown, err := h.verifier.Decrypt(t.QRPayload)
	if err != nil {
		h.log.Error(ctx, "fresh ticket did not decrypt", "ticket_ref", t.Ref)
		http.Error(w, "server misconfiguration", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, CreateTicketResponse{
		TicketRef:     t.Ref,
		QRPayload:     t.QRPayload,
		ServerPayload: t.ServerPayload,
		QRURL:         "/tickets/" + t.Ref + "/qr.png",
		Ticket:        shown,
	})
}

// VerifyTicketHandler answers {"valid": bool} for a scanned payload and
// either the server payload or the ticket reference it was stored under.
// The failure reason stays in the server log.
func (h *Handler) VerifyTicketHandler(w http.ResponseWriter, r *http.Request) {
	var req VerifyTicketRequest
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "verification failed", http.StatusBadRequest)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "verification failed", http.StatusBadRequest)
			return
		}
		req = VerifyTicketRequest{
			QRData:     r.PostForm.Get("qr_data"),
			ServerData: r.PostForm.Get("server_data"),
			TicketRef:  r.PostForm.Get("ticket_ref"),
		}
	}
	if req.QRData == "" || (req.ServerData == "" && req.TicketRef == "") {
		http.Error(w, "verification failed", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	server := req.ServerData
	if server == "" {
		rec, err := h.store.Get(ctx, req.TicketRef)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				h.log.Error(ctx, "ticket lookup failed", "error", err)
				http.Error(w, "verification failed", http.StatusInternalServerError)
				return
			}
			h.log.Warn(ctx, "ticket verification failed", "reason", "UNKNOWN_TICKET_REF")
			writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
			return
		}
		server = rec.ServerPayload
	}

	payload, err := qr.Normalize(req.QRData)
	if err != nil {
		h.log.Warn(ctx, "ticket verification failed", "reason", string(models.ReasonTamperedOrForged))
		writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
		return
	}

	res := h.verifier.Verify(ctx, payload, server)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": res.Valid})
}

// QRImageHandler serves the PNG rendered at issuance.
func (h *Handler) QRImageHandler(w http.ResponseWriter, r *http.Request) {
	path, err := h.images.Path(mux.Vars(r)["ref"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
