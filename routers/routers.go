package routers

import (
	"cohort-bank/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes of the operator API
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Local ledger
	r.HandleFunc("/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/deposit", h.Deposit).Methods("POST")
	r.HandleFunc("/withdraw", h.Withdraw).Methods("POST")

	// Moves funds to a cohort peer, or drops the message when "lost" is set
	r.HandleFunc("/transfer", h.Transfer).Methods("POST")

	// Starts a cohort-wide checkpoint or rollback with this customer as initiator
	r.HandleFunc("/checkpoint", h.Checkpoint).Methods("POST")
	r.HandleFunc("/rollback", h.Rollback).Methods("POST")

	// Persisted snapshots
	r.HandleFunc("/checkpoints", h.GetCheckpoints).Methods("GET")
	r.HandleFunc("/checkpoints/latest", h.GetLatestCheckpoint).Methods("GET")

	// Cohort membership and channel state
	r.HandleFunc("/cohort", h.GetCohort).Methods("GET")
	r.HandleFunc("/labels", h.GetLabels).Methods("GET")
	r.HandleFunc("/status", h.GetStatus).Methods("GET")
}
