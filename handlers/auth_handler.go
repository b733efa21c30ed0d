package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/KhrulSergey/league-core-sub002/middleware"
	"github.com/KhrulSergey/league-core-sub002/utils"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	auth              *middleware.Authenticator
	adminPasswordHash string
}

func NewAuthHandler(auth *middleware.Authenticator, adminPasswordHash string) *AuthHandler {
	return &AuthHandler{auth: auth, adminPasswordHash: adminPasswordHash}
}

// AdminToken exchanges the operator password for an admin bearer token.
func (h *AuthHandler) AdminToken(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if h.adminPasswordHash == "" || !utils.CheckPasswordHash(input.Password, h.adminPasswordHash) {
		unauthorizedResponse(w, r, "invalid credentials")
		return
	}

	token, err := h.signToken(jwt.MapClaims{
		"role": middleware.RoleAdmin,
		"exp":  time.Now().Add(tokenTTL).Unix(),
	})
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"token": token}, nil)
}

// PlayerToken issues a participant token for self reporting. Admin only.
func (h *AuthHandler) PlayerToken(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID int `json:"user_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.UserID <= 0 {
		badRequestResponse(w, r, errors.New("user_id is required"))
		return
	}

	token, err := h.signToken(jwt.MapClaims{
		"role":    middleware.RolePlayer,
		"user_id": input.UserID,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"token": token}, nil)
}

func (h *AuthHandler) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.auth.Secret())
}

func isAdmin(ctx context.Context) bool {
	role, ok := middleware.RoleFromContext(ctx)
	return ok && role == middleware.RoleAdmin
}
