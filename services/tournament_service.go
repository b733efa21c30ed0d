package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/repositories"
	"github.com/KhrulSergey/league-core-sub002/storage"
)

type CreateTournamentInput struct {
	Name              string                     `json:"name"`
	Description       *string                    `json:"description,omitempty"`
	Discipline        string                     `json:"discipline"`
	EliminationSystem models.EliminationSystem   `json:"elimination_system"`
	ParticipantType   models.ParticipantType     `json:"participant_type"`
	StartDate         time.Time                  `json:"start_date"`
	Settings          *models.TournamentSettings `json:"settings"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error)
	// ChangeStatus applies an operator-requested lifecycle edge. The edge
	// into started is reserved for bracket generation and rejected here.
	ChangeStatus(ctx context.Context, id int, requested models.TournamentStatus) (*models.Tournament, error)
	// ReplaceSettings swaps the settings document. Allowed until the
	// tournament starts; a running bracket keeps the settings it was built
	// with.
	ReplaceSettings(ctx context.Context, tournamentID int, settings *models.TournamentSettings) (*models.TournamentSettings, error)
	UploadLogo(ctx context.Context, tournamentID int, contentType string, reader io.Reader) (*models.Tournament, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	txManager      repositories.TxManager
	locks          *TournamentLocks
	uploader       storage.FileUploader
	publisher      EventPublisher
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	txManager repositories.TxManager,
	locks *TournamentLocks,
	uploader storage.FileUploader,
	publisher EventPublisher,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		txManager:      txManager,
		locks:          locks,
		uploader:       uploader,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("name is required: %w", ErrValidationFailed)
	}
	if strings.TrimSpace(input.Discipline) == "" {
		return nil, fmt.Errorf("discipline is required: %w", ErrValidationFailed)
	}
	if !input.EliminationSystem.Valid() {
		return nil, fmt.Errorf("unknown elimination system %q: %w", input.EliminationSystem, ErrValidationFailed)
	}
	if !input.ParticipantType.Valid() {
		return nil, fmt.Errorf("unknown participant type %q: %w", input.ParticipantType, ErrValidationFailed)
	}
	if input.StartDate.IsZero() {
		return nil, fmt.Errorf("start date is required: %w", ErrValidationFailed)
	}

	settings := input.Settings
	if settings == nil {
		settings = &models.TournamentSettings{}
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if input.EliminationSystem == models.SurvivalElimination && len(settings.RoundKickOffs) == 0 {
		return nil, fmt.Errorf("%w: survival elimination needs round kick-offs", ErrValidationFailed)
	}

	tournament := &models.Tournament{
		Name:              strings.TrimSpace(input.Name),
		Description:       input.Description,
		Discipline:        strings.TrimSpace(input.Discipline),
		EliminationSystem: input.EliminationSystem,
		ParticipantType:   input.ParticipantType,
		Status:            models.StatusCreated,
		StartDate:         input.StartDate,
	}

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.Create(ctx, exec, tournament); err != nil {
			return err
		}
		settings.TournamentID = tournament.ID
		settings.Status = models.StatusCreated
		return s.tournamentRepo.CreateSettings(ctx, exec, settings)
	})
	if err != nil {
		return nil, err
	}
	tournament.Settings = settings

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.String("name", tournament.Name),
		slog.String("elimination_system", string(tournament.EliminationSystem)))
	return tournament, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("tournament %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	settings, err := s.tournamentRepo.GetSettings(ctx, nil, id)
	if err != nil && !errors.Is(err, repositories.ErrSettingsNotFound) {
		return nil, err
	}
	tournament.Settings = settings
	s.fillLogoURL(tournament)
	return tournament, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, nil, filter)
	if err != nil {
		return nil, err
	}
	for _, tournament := range tournaments {
		s.fillLogoURL(tournament)
	}
	return tournaments, nil
}

func (s *tournamentService) ChangeStatus(ctx context.Context, id int, requested models.TournamentStatus) (*models.Tournament, error) {
	if requested == models.StatusStarted {
		return nil, fmt.Errorf("starting goes through bracket generation: %w", ErrForbiddenOperation)
	}
	if requested == models.StatusFinished {
		return nil, fmt.Errorf("finishing goes through round progression: %w", ErrForbiddenOperation)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		tournament *models.Tournament
		event      models.StatusEvent
	)
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return fmt.Errorf("tournament %d: %w", id, ErrNotFound)
			}
			return err
		}
		// Pause is only meaningful for a running bracket.
		if requested == models.StatusPause && tournament.Status != models.StatusStarted {
			return fmt.Errorf("tournament %d is %s: %w", id, tournament.Status, ErrWrongTournamentState)
		}
		var newStatus models.TournamentStatus
		newStatus, event, err = models.Transition(models.ScopeTournament, id, tournament.Status, requested)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrongTournamentState, err)
		}
		if !event.Changed() {
			return nil
		}
		tournament.Status = newStatus
		return s.tournamentRepo.UpdateStatus(ctx, exec, id, newStatus)
	})
	if err != nil {
		return nil, err
	}

	publishStatusEvent(s.publisher, id, event)
	s.publisher.Publish("tournament.status_changed", id, tournament)
	return tournament, nil
}

func (s *tournamentService) ReplaceSettings(ctx context.Context, tournamentID int, settings *models.TournamentSettings) (*models.TournamentSettings, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings body is required: %w", ErrValidationFailed)
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return fmt.Errorf("tournament %d: %w", tournamentID, ErrNotFound)
			}
			return err
		}
		switch tournament.Status {
		case models.StatusCreated, models.StatusSignUp, models.StatusAdjustment:
		default:
			return fmt.Errorf("tournament %d is %s: %w", tournamentID, tournament.Status, ErrWrongTournamentState)
		}
		if tournament.EliminationSystem == models.SurvivalElimination && len(settings.RoundKickOffs) == 0 {
			return fmt.Errorf("%w: survival elimination needs round kick-offs", ErrValidationFailed)
		}
		settings.TournamentID = tournamentID
		settings.Status = tournament.Status
		return s.tournamentRepo.ReplaceSettings(ctx, exec, settings)
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *tournamentService) UploadLogo(ctx context.Context, tournamentID int, contentType string, reader io.Reader) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("tournament %d: %w", tournamentID, ErrNotFound)
		}
		return nil, err
	}

	key := fmt.Sprintf("tournaments/%d/logo-%s", tournamentID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("upload logo: %w", err)
	}
	if err := s.tournamentRepo.UpdateLogoKey(ctx, nil, tournamentID, &result.Key); err != nil {
		return nil, err
	}

	if tournament.LogoKey != nil && *tournament.LogoKey != result.Key {
		if derr := s.uploader.Delete(ctx, *tournament.LogoKey); derr != nil {
			s.logger.WarnContext(ctx, "stale logo not deleted",
				slog.Int("tournament_id", tournamentID),
				slog.String("key", *tournament.LogoKey),
				slog.Any("error", derr))
		}
	}

	tournament.LogoKey = &result.Key
	s.fillLogoURL(tournament)
	return tournament, nil
}

func (s *tournamentService) fillLogoURL(tournament *models.Tournament) {
	if tournament.LogoKey == nil || *tournament.LogoKey == "" {
		return
	}
	url := s.uploader.GetPublicURL(*tournament.LogoKey)
	tournament.LogoURL = &url
}
