package handlers

import (
	"net/http"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/services"
)

type RoundHandler struct {
	roundService  services.RoundService
	seriesService services.SeriesService
}

func NewRoundHandler(rs services.RoundService, ss services.SeriesService) *RoundHandler {
	return &RoundHandler{roundService: rs, seriesService: ss}
}

func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := idParam(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	round, err := h.roundService.GetRound(r.Context(), roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, round, nil)
}

func (h *RoundHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rounds, err := h.roundService.ListRounds(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"rounds": rounds}, nil)
}

func (h *RoundHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	roundID, err := idParam(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	series, err := h.seriesService.ListSeriesByRound(r.Context(), roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"series": series}, nil)
}

// CloseRound finishes a fully settled round by hand, for tournaments running
// without automatic round progression.
func (h *RoundHandler) CloseRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := idParam(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	round, err := h.roundService.CloseRound(r.Context(), roundID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, round, nil)
}

// ChangeStatus force-declines or deletes a round.
func (h *RoundHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	roundID, err := idParam(r, "roundID")
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

	round, err := h.roundService.ChangeRoundStatus(r.Context(), roundID, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, round, nil)
}
