package httpapi

import (
	"net/http"

	"github.com/MattMyers204453/smashrank-api/pkg/match"
)

type inviteRequest struct {
	ChallengerUsername string `json:"challengerUsername"`
	TargetUsername     string `json:"targetUsername"`
}

type inviteActionRequest struct {
	InviteID           string `json:"inviteId"`
	ChallengerUsername string `json:"challengerUsername"`
	OpponentUsername   string `json:"opponentUsername"`
}

type reportRequest struct {
	MatchID          string `json:"matchId"`
	ReporterUsername string `json:"reporterUsername"`
	ClaimedWinner    string `json:"claimedWinner"`
}

type confirmRequest struct {
	MatchID           string `json:"matchId"`
	ConfirmerUsername string `json:"confirmerUsername"`
	ClaimedWinner     string `json:"claimedWinner"`
}

type rematchRequest struct {
	MatchID  string `json:"matchId"`
	Username string `json:"username"`
	Accept   bool   `json:"accept"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	inviteID, err := s.coord.Invite(r.Context(), req.ChallengerUsername, req.TargetUsername)
	if err != nil {
		s.textError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, inviteID)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req inviteActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if _, err := s.coord.Accept(r.Context(), req.InviteID, req.ChallengerUsername, req.OpponentUsername); err != nil {
		s.textError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDecline releases an invite. The caller must be one of the two named
// players, which is the one place a body handle is cross-checked against the
// token.
func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	var req inviteActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	caller := callerClaims(r).Username
	if err := s.coord.Decline(r.Context(), caller, req.ChallengerUsername, req.OpponentUsername); err != nil {
		s.textError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req inviteActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.coord.Cancel(r.Context(), req.InviteID, req.ChallengerUsername, req.OpponentUsername); err != nil {
		s.textError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Invite cancelled.")
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.coord.Report(r.Context(), req.MatchID, req.ReporterUsername, req.ClaimedWinner); err != nil {
		s.textError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Report received. Waiting for opponent to confirm.")
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	outcome, err := s.coord.Confirm(r.Context(), req.MatchID, req.ConfirmerUsername, req.ClaimedWinner)
	if err != nil {
		s.textError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, outcome)
}

func (s *Server) handleRematch(w http.ResponseWriter, r *http.Request) {
	var req rematchRequest
	if err := decodeBody(r, &req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	outcome, next, err := s.coord.Rematch(r.Context(), req.MatchID, req.Username, req.Accept)
	if err != nil {
		s.textError(w, r, err)
		return
	}
	switch outcome {
	case match.RematchDeclined:
		writeText(w, http.StatusOK, "Rematch declined.")
	case match.RematchWaiting:
		writeText(w, http.StatusOK, "Waiting for opponent.")
	case match.RematchStarted:
		writeText(w, http.StatusOK, "Rematch started! New match ID: "+next.ID)
	}
}
