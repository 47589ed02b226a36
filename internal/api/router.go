package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")

	r.HandleFunc("/tickets", h.CreateTicketHandler).Methods("POST")
	r.HandleFunc("/tickets/verify", h.VerifyTicketHandler).Methods("POST")
	r.HandleFunc("/tickets/{ref}/qr.png", h.QRImageHandler).Methods("GET")

	// form endpoints of the original web app
	r.HandleFunc("/generate_ticket", h.CreateTicketHandler).Methods("POST")
	r.HandleFunc("/verify_card", h.VerifyTicketHandler).Methods("POST")
	return r
}
