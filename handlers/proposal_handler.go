package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/KhrulSergey/league-core-sub002/middleware"
	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/services"
)

type ProposalHandler struct {
	proposalService services.ProposalService
}

func NewProposalHandler(s services.ProposalService) *ProposalHandler {
	return &ProposalHandler{proposalService: s}
}

// SubmitProposal registers a team or user for a tournament in sign_up.
func (h *ProposalHandler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		TeamID             *int  `json:"team_id,omitempty"`
		UserID             *int  `json:"user_id,omitempty"`
		ParticipantUserIDs []int `json:"participant_user_ids,omitempty"`
		ReserveUserIDs     []int `json:"reserve_user_ids,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Player submissions carry the actor for the captaincy check; admins
	// submit on a team's behalf.
	var submittedBy *int
	if role, ok := middleware.RoleFromContext(r.Context()); ok && role != middleware.RoleAdmin {
		userID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		submittedBy = &userID
	}

	proposal, err := h.proposalService.SubmitProposal(r.Context(), services.SubmitProposalInput{
		TournamentID:       tournamentID,
		TeamID:             input.TeamID,
		UserID:             input.UserID,
		ParticipantUserIDs: input.ParticipantUserIDs,
		ReserveUserIDs:     input.ReserveUserIDs,
		SubmittedByUserID:  submittedBy,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, proposal, nil)
}

func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	proposalID, err := idParam(r, "proposalID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	proposal, err := h.proposalService.GetProposal(r.Context(), proposalID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal, nil)
}

func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var statusFilter *models.ParticipationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.ParticipationStatus(raw)
		if !status.Valid() {
			badRequestResponse(w, r, errors.New("unknown proposal status filter"))
			return
		}
		statusFilter = &status
	}

	proposals, err := h.proposalService.ListProposals(r.Context(), tournamentID, statusFilter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"proposals": proposals}, nil)
}

// ChangeProposalStatus approves, rejects or cancels a pending proposal.
func (h *ProposalHandler) ChangeProposalStatus(w http.ResponseWriter, r *http.Request) {
	proposalID, err := idParam(r, "proposalID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Status models.ParticipationStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	proposal, err := h.proposalService.ChangeProposalStatus(r.Context(), proposalID, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal, nil)
}

// QuitTournament withdraws an approved proposal, charging the configured
// penalty for the remaining time to start.
func (h *ProposalHandler) QuitTournament(w http.ResponseWriter, r *http.Request) {
	proposalID, err := idParam(r, "proposalID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	proposal, err := h.proposalService.QuitTournament(r.Context(), proposalID, time.Now().UTC())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal, nil)
}
