package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/KhrulSergey/league-core-sub002/handlers"
	"github.com/KhrulSergey/league-core-sub002/middleware"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Proposal   *handlers.ProposalHandler
	Round      *handlers.RoundHandler
	Series     *handlers.SeriesHandler
	Match      *handlers.MatchHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, auth *middleware.Authenticator, allowedOrigins []string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/swagger/*", httpSwagger.Handler())

	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", h.Auth.AdminToken)
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))
			r.Post("/player-token", h.Auth.PlayerToken)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.ListTournaments)
		r.Get("/{id}", h.Tournament.GetTournament)
		r.Get("/{id}/bracket", h.Tournament.GetBracket)
		r.Get("/{id}/rounds", h.Round.ListRounds)
		r.Get("/{id}/proposals", h.Proposal.ListProposals)
		r.Get("/{id}/ws", h.WebSocket.Subscribe)

		// Sign-up requires a token, admin or player.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Post("/{id}/proposals", h.Proposal.SubmitProposal)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))

			r.Post("/", h.Tournament.CreateTournament)
			r.Patch("/{id}/status", h.Tournament.ChangeStatus)
			r.Put("/{id}/settings", h.Tournament.ReplaceSettings)
			r.Post("/{id}/logo", h.Tournament.UploadLogo)
			r.Post("/{id}/bracket", h.Tournament.GenerateBracket)
		})
	})

	router.Route("/proposals", func(r chi.Router) {
		r.Get("/{proposalID}", h.Proposal.GetProposal)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Post("/{proposalID}/quit", h.Proposal.QuitTournament)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))
			r.Patch("/{proposalID}/status", h.Proposal.ChangeProposalStatus)
		})
	})

	router.Route("/rounds", func(r chi.Router) {
		r.Get("/{roundID}", h.Round.GetRound)
		r.Get("/{roundID}/series", h.Round.ListSeries)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))
			r.Post("/{roundID}/close", h.Round.CloseRound)
			r.Patch("/{roundID}/status", h.Round.ChangeStatus)
		})
	})

	router.Route("/series", func(r chi.Router) {
		r.Get("/{seriesID}", h.Series.GetSeries)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))
			r.Post("/{seriesID}/matches", h.Series.GenerateNextMatch)
			r.Put("/{seriesID}/winner", h.Series.SetWinner)
			r.Patch("/{seriesID}/status", h.Series.ChangeStatus)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", h.Match.GetMatch)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Post("/{matchID}/result", h.Match.ReportResult)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))
			r.Post("/{matchID}/resolve", h.Match.ResolveMatch)
			r.Put("/{matchID}/winner", h.Match.SetWinner)
			r.Patch("/{matchID}/status", h.Match.ChangeStatus)
		})
	})

	return router
}
