package handlers

import (
	"net/http"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/services"
)

type SeriesHandler struct {
	seriesService services.SeriesService
}

func NewSeriesHandler(s services.SeriesService) *SeriesHandler {
	return &SeriesHandler{seriesService: s}
}

func (h *SeriesHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	seriesID, err := idParam(r, "seriesID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	series, err := h.seriesService.GetSeries(r.Context(), seriesID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series, nil)
}

// GenerateNextMatch opens the next best-of-N game once the previous one is
// settled.
func (h *SeriesHandler) GenerateNextMatch(w http.ResponseWriter, r *http.Request) {
	seriesID, err := idParam(r, "seriesID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.seriesService.GenerateNextMatch(r.Context(), seriesID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, match, nil)
}

// SetWinner is the operator override for a series outcome.
func (h *SeriesHandler) SetWinner(w http.ResponseWriter, r *http.Request) {
	seriesID, err := idParam(r, "seriesID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		WinnerRivalID *int `json:"winner_rival_id,omitempty"`
		HasNoWinner   bool `json:"has_no_winner"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	series, err := h.seriesService.SetSeriesWinner(r.Context(), seriesID, input.WinnerRivalID, input.HasNoWinner)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series, nil)
}

// ChangeStatus force-declines or deletes a series.
func (h *SeriesHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	seriesID, err := idParam(r, "seriesID")
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

	series, err := h.seriesService.ChangeSeriesStatus(r.Context(), seriesID, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series, nil)
}
