package handlers

import (
	"errors"
	"net/http"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/repositories"
	"github.com/KhrulSergey/league-core-sub002/services"
)

const maxLogoBytes = 5 << 20

type TournamentHandler struct {
	tournamentService services.TournamentService
	bracketService    services.BracketService
}

func NewTournamentHandler(ts services.TournamentService, bs services.BracketService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts, bracketService: bs}
}

// CreateTournament godoc
// @Summary Create a tournament with its settings document
// @Tags tournaments
// @Accept json
// @Produce json
// @Param tournament body services.CreateTournamentInput true "Tournament"
// @Success 201 {object} models.Tournament
// @Router /tournaments [post]
func (h *TournamentHandler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tournament, nil)
}

func (h *TournamentHandler) GetTournament(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament, nil)
}

func (h *TournamentHandler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repositories.ListTournamentsFilter{
		Limit:  toInt(q.Get("limit"), 20),
		Offset: toInt(q.Get("offset"), 0),
	}
	if raw := q.Get("status"); raw != "" {
		status := models.TournamentStatus(raw)
		if !status.Valid() {
			badRequestResponse(w, r, errors.New("unknown status filter"))
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("elimination_system"); raw != "" {
		system := models.EliminationSystem(raw)
		if !system.Valid() {
			badRequestResponse(w, r, errors.New("unknown elimination system filter"))
			return
		}
		filter.EliminationSystem = &system
	}
	if raw := q.Get("participant_type"); raw != "" {
		kind := models.ParticipantType(raw)
		if !kind.Valid() {
			badRequestResponse(w, r, errors.New("unknown participant type filter"))
			return
		}
		filter.ParticipantType = &kind
	}

	tournaments, err := h.tournamentService.ListTournaments(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil)
}

// ChangeStatus applies an operator lifecycle edge (sign_up, adjustment,
// pause, declined, deleted). Starting and finishing are not reachable here.
func (h *TournamentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
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

	tournament, err := h.tournamentService.ChangeStatus(r.Context(), id, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament, nil)
}

func (h *TournamentHandler) ReplaceSettings(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var settings models.TournamentSettings
	if err := readJSON(w, r, &settings); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	updated, err := h.tournamentService.ReplaceSettings(r.Context(), id, &settings)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated, nil)
}

// GenerateBracket freezes approved proposals and starts the tournament.
func (h *TournamentHandler) GenerateBracket(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.bracketService.GenerateBracket(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tournament, nil)
}

func (h *TournamentHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.bracketService.GetBracket(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament, nil)
}

func (h *TournamentHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		badRequestResponse(w, r, errors.New("could not parse multipart form"))
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		badRequestResponse(w, r, errors.New("logo file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "image/png" && contentType != "image/jpeg" && contentType != "image/webp" {
		badRequestResponse(w, r, errors.New("logo must be png, jpeg or webp"))
		return
	}

	tournament, err := h.tournamentService.UploadLogo(r.Context(), id, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournament, nil)
}
