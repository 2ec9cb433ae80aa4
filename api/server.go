package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"evoting-backend/models"
	"evoting-backend/service"
	"evoting-backend/storage"
)

type Server struct {
	votingService *service.VotingService
	log           zerolog.Logger
}

type RegisterVoterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	VoterID  string `json:"voter_id"`
}

type RegisterVoterResponse struct {
	ID            uint   `json:"id"`
	VoterID       string `json:"voter_id"`
	LedgerAddress string `json:"ledger_address"`
}

type CastVoteRequest struct {
	VoterID     uint `json:"voter_id"`
	CandidateID uint `json:"candidate_id"`
	ElectionID  uint `json:"election_id"`
}

type CastVoteResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash"`
}

type AddCandidateResponse struct {
	Candidate *models.Candidate `json:"candidate"`
	TxHash    string            `json:"tx_hash,omitempty"`
}

type StatusResponse struct {
	ElectionActive bool `json:"election_active"`
	ElectionID     uint `json:"election_id,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewServer(votingService *service.VotingService, log zerolog.Logger) *Server {
	return &Server{
		votingService: votingService,
		log:           log.With().Str("component", "api").Logger(),
	}
}

// Routes wires the HTTP surface. Every orchestrator call may block on the
// ledger node, so handlers run with the request context and rely on the
// connector's timeouts.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/register", s.handleRegisterVoter)
	mux.HandleFunc("/api/vote", s.handleCastVote)
	mux.HandleFunc("/api/results", s.handleGetResults)
	mux.HandleFunc("/api/verify", s.handleVerifyVote)
	mux.HandleFunc("/api/status", s.handleGetStatus)
	mux.HandleFunc("/api/candidates", s.handleGetCandidates)

	mux.HandleFunc("/api/admin/candidates", s.handleCandidates)
	mux.HandleFunc("/api/admin/election/start", s.handleStartElection)
	mux.HandleFunc("/api/admin/election/stop", s.handleStopElection)
	mux.HandleFunc("/api/admin/export-csv", s.handleExportCSV)
	mux.HandleFunc("/api/admin/promote", s.handlePromote)

	return s.withRequestLog(mux)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}

func (s *Server) handleRegisterVoter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterVoterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Email == "" || req.VoterID == "" {
		writeError(w, http.StatusBadRequest, "username, email and voter_id are required")
		return
	}

	voter, err := s.votingService.RegisterVoter(r.Context(), req.Username, req.Email, req.VoterID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailRegistered), errors.Is(err, service.ErrVoterIDRegistered):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, RegisterVoterResponse{
		ID:            voter.ID,
		VoterID:       voter.VoterID,
		LedgerAddress: voter.LedgerAddress,
	})
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	txHash, err := s.votingService.CastVote(r.Context(), req.VoterID, req.CandidateID, req.ElectionID)
	if err != nil {
		writeError(w, voteStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CastVoteResponse{Success: true, TxHash: txHash})
}

// voteStatus maps the vote error taxonomy onto HTTP statuses.
func voteStatus(err error) int {
	var submission *service.SubmissionError
	switch {
	case errors.Is(err, service.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoActiveElection), errors.Is(err, service.ErrInvalidCandidate):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAccountNotProvisioned):
		return http.StatusInternalServerError
	case errors.As(err, &submission):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results, err := s.votingService.Results(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get results: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleVerifyVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	voted := s.votingService.VerifyVote(r.Context(), address)
	writeJSON(w, http.StatusOK, map[string]bool{"voted": voted})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	election, err := s.votingService.ActiveElection()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := StatusResponse{}
	if election != nil {
		resp.ElectionActive = true
		resp.ElectionID = election.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	candidates, err := s.votingService.Candidates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

// handleCandidates covers admin candidate management: POST adds, PUT edits,
// DELETE removes (id via query parameter).
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var input service.CandidateInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if input.Name == "" {
			writeError(w, http.StatusBadRequest, "candidate name is required")
			return
		}

		candidate, txHash, err := s.votingService.AddCandidate(r.Context(), input)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, AddCandidateResponse{Candidate: candidate, TxHash: txHash})

	case http.MethodPut:
		var candidate models.Candidate
		if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.votingService.UpdateCandidate(&candidate); err != nil {
			writeError(w, candidateStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	case http.MethodDelete:
		id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid candidate id")
			return
		}
		if err := s.votingService.DeleteCandidate(uint(id)); err != nil {
			writeError(w, candidateStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func candidateStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) handleStartElection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	election, err := s.votingService.StartElection()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, election)
}

func (s *Server) handleStopElection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.votingService.StopElection(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=results.csv")
	if err := s.votingService.ExportResultsCSV(r.Context(), w); err != nil {
		s.log.Error().Err(err).Msg("csv export failed")
	}
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid voter id")
		return
	}
	if err := s.votingService.PromoteToAdmin(uint(id)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}
