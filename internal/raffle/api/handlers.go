package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
)

type enterRequest struct {
	Payer  string `json:"payer"`
	Amount int64  `json:"amount"`
}

type enterResponse struct {
	RoundNumber      int64 `json:"round_number"`
	ParticipantCount int   `json:"participant_count"`
	Pool             int64 `json:"pool"`
}

type roundResponse struct {
	RoundNumber      int64     `json:"round_number"`
	State            string    `json:"state"`
	EntranceFee      int64     `json:"entrance_fee"`
	IntervalSeconds  int64     `json:"interval_seconds"`
	OpenedAt         time.Time `json:"opened_at"`
	ParticipantCount int       `json:"participant_count"`
	Pool             int64     `json:"pool"`
}

type eligibilityResponse struct {
	Eligible bool `json:"eligible"`
}

type participantResponse struct {
	Index   int    `json:"index"`
	Address string `json:"address"`
}

type winnerResponse struct {
	RoundNumber int64     `json:"round_number"`
	Address     string    `json:"address"`
	Payout      int64     `json:"payout"`
	SettledAt   time.Time `json:"settled_at"`
}

type winnersResponse struct {
	Winners       []winnerResponse `json:"winners"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type closeResponse struct {
	RequestID string `json:"request_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := s.raffle.Enter(r.Context(), domain.Address(strings.TrimSpace(req.Payer)), domain.Amount(req.Amount)); err != nil {
		writeError(w, err)
		return
	}

	status := s.raffle.Snapshot()
	writeJSON(w, http.StatusCreated, enterResponse{
		RoundNumber:      status.RoundNumber,
		ParticipantCount: status.ParticipantCount,
		Pool:             int64(status.Pool),
	})
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.raffle.Snapshot()
	writeJSON(w, http.StatusOK, roundResponse{
		RoundNumber:      status.RoundNumber,
		State:            status.State.String(),
		EntranceFee:      int64(status.EntranceFee),
		IntervalSeconds:  int64(status.Interval / time.Second),
		OpenedAt:         status.OpenedAt,
		ParticipantCount: status.ParticipantCount,
		Pool:             int64(status.Pool),
	})
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, eligibilityResponse{Eligible: s.raffle.EvaluateEligibility()})
}

func (s *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/v1/round/participants/")
	index, err := strconv.Atoi(raw)
	if err != nil || raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "participant index must be an integer"})
		return
	}
	if index < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "participant index must not be negative"})
		return
	}

	address, err := s.raffle.ParticipantAt(index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participantResponse{Index: index, Address: string(address)})
}

func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	winner, ok := s.raffle.LastWinner()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no round has settled yet"})
		return
	}
	writeJSON(w, http.StatusOK, winnerView(winner))
}

func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.winners == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "winner history is not available"})
		return
	}

	pageSize := 20
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page_size must be between 1 and 100"})
			return
		}
		pageSize = parsed
	}

	page, err := s.winners.ListWinners(r.Context(), pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeError(w, err)
		return
	}

	response := winnersResponse{NextPageToken: page.NextPageToken}
	for _, winner := range page.Winners {
		response.Winners = append(response.Winners, winnerView(domain.WinnerRecord(winner)))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleAdminClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	requestID, err := s.raffle.RequestClose(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, closeResponse{RequestID: requestID})
}

func (s *Server) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "a cancel reason is required"})
		return
	}

	if err := s.raffle.CancelSettlement(r.Context(), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func winnerView(record domain.WinnerRecord) winnerResponse {
	return winnerResponse{
		RoundNumber: record.RoundNumber,
		Address:     string(record.Address),
		Payout:      int64(record.Payout),
		SettledAt:   record.SettledAt,
	}
}
