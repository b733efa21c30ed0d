package handlers

import (
	"errors"
	"net/http"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(s services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: s}
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match, nil)
}

// ReportResult records a rival's indicator set for an open match. Self
// reports are accepted only for self-hosted tournaments; operator reports
// always pass.
func (h *MatchHandler) ReportResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		MatchRivalID          int                        `json:"match_rival_id"`
		Indicators            []models.Indicator         `json:"indicators"`
		ParticipantIndicators map[int][]models.Indicator `json:"participant_indicators,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.MatchRivalID <= 0 {
		badRequestResponse(w, r, errors.New("match_rival_id is required"))
		return
	}

	match, err := h.matchService.ReportRivalResult(r.Context(), services.ReportRivalResultInput{
		MatchID:               matchID,
		MatchRivalID:          input.MatchRivalID,
		Indicators:            input.Indicators,
		ParticipantIndicators: input.ParticipantIndicators,
		SelfReport:            !isAdmin(r.Context()),
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match, nil)
}

// ResolveMatch scores the reported indicators and settles the match,
// cascading into series and round progression.
func (h *MatchHandler) ResolveMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	match, err := h.matchService.ResolveMatch(r.Context(), matchID, force)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match, nil)
}

// SetWinner is the operator override: declare a winner or a drawn match
// without scoring indicators.
func (h *MatchHandler) SetWinner(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		WinnerMatchRivalID *int `json:"winner_match_rival_id,omitempty"`
		HasNoWinner        bool `json:"has_no_winner"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.SetMatchWinner(r.Context(), matchID, input.WinnerMatchRivalID, input.HasNoWinner)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match, nil)
}

// ChangeStatus force-declines or deletes a match.
func (h *MatchHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Status models.TournamentStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.ChangeMatchStatus(r.Context(), matchID, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match, nil)
}
