// Package api exposes the raffle over a JSON HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/service"
	"github.com/louisbranch/prizewheel/internal/raffle/storage"
)

// Config configures the HTTP API server.
type Config struct {
	// Raffle is the live round service.
	Raffle *service.Raffle
	// Winners serves the historical winner listing. Optional; without it the
	// winners listing endpoint reports the feature as unavailable.
	Winners storage.WinnerStore
	// AdminToken guards the operator endpoints. When empty the operator
	// endpoints are disabled.
	AdminToken string
}

// Server handles the raffle HTTP API.
type Server struct {
	raffle     *service.Raffle
	winners    storage.WinnerStore
	adminToken string
}

// NewServer builds the API server and its route table.
func NewServer(cfg Config) (*Server, http.Handler, error) {
	if cfg.Raffle == nil {
		return nil, nil, errors.New("raffle service is required")
	}
	s := &Server{
		raffle:     cfg.Raffle,
		winners:    cfg.Winners,
		adminToken: cfg.AdminToken,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/entries", s.handleEntries)
	mux.HandleFunc("/v1/round", s.handleRound)
	mux.HandleFunc("/v1/round/eligibility", s.handleEligibility)
	mux.HandleFunc("/v1/round/participants/", s.handleParticipant)
	mux.HandleFunc("/v1/winner", s.handleWinner)
	mux.HandleFunc("/v1/winners", s.handleWinners)
	mux.HandleFunc("/v1/admin/round/close", s.handleAdminClose)
	mux.HandleFunc("/v1/admin/settlement/cancel", s.handleAdminCancel)
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s, mux, nil
}

// authorized checks the operator bearer token.
func (s *Server) authorized(r *http.Request) bool {
	if s.adminToken == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")) == s.adminToken
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

// writeError maps round lifecycle errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var notEligible *domain.NotEligibleError
	var unknownRequest *domain.UnknownRequestError
	var payoutFailed *domain.PayoutFailedError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrEmptyAddress),
		errors.Is(err, domain.ErrInsufficientFee):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRoundNotOpen),
		errors.Is(err, domain.ErrAlreadySettling),
		errors.Is(err, domain.ErrNotSettling):
		status = http.StatusConflict
	case errors.As(err, &notEligible):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &unknownRequest):
		status = http.StatusNotFound
	case errors.As(err, &payoutFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
