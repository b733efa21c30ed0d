package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrSettingsNotFound       = errors.New("tournament settings not found")
	ErrSettingsConflict       = errors.New("tournament already has active settings")
)

type ListTournamentsFilter struct {
	Status            *models.TournamentStatus
	EliminationSystem *models.EliminationSystem
	ParticipantType   *models.ParticipantType
	Limit             int
	Offset            int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, exec SQLExecutor, filter ListTournamentsFilter) ([]*models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateWinners(ctx context.Context, exec SQLExecutor, id int, winnerProposalIDs []int) error
	UpdateLogoKey(ctx context.Context, exec SQLExecutor, id int, logoKey *string) error

	CreateSettings(ctx context.Context, exec SQLExecutor, settings *models.TournamentSettings) error
	GetSettings(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.TournamentSettings, error)
	ReplaceSettings(ctx context.Context, exec SQLExecutor, settings *models.TournamentSettings) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(name, description, discipline, elimination_system, participant_type, status, start_date, logo_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Name, t.Description, t.Discipline, t.EliminationSystem,
		t.ParticipantType, t.Status, t.StartDate, t.LogoKey,
	).Scan(&t.ID, &t.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrTournamentNameConflict
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

const tournamentColumns = `
	id, name, description, discipline, elimination_system, participant_type,
	status, start_date, created_at, logo_key, winner_proposal_ids`

func scanTournament(scanner interface{ Scan(dest ...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	var winners pq.Int64Array
	err := scanner.Scan(
		&t.ID, &t.Name, &t.Description, &t.Discipline, &t.EliminationSystem,
		&t.ParticipantType, &t.Status, &t.StartDate, &t.CreatedAt, &t.LogoKey, &winners,
	)
	if err != nil {
		return nil, err
	}
	for _, id := range winners {
		t.WinnerProposalIDs = append(t.WinnerProposalIDs, int(id))
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	t, err := scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, exec SQLExecutor, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE status <> 'deleted'`
	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.EliminationSystem != nil {
		query += fmt.Sprintf(" AND elimination_system = $%d", argID)
		args = append(args, *filter.EliminationSystem)
		argID++
	}
	if filter.ParticipantType != nil {
		query += fmt.Sprintf(" AND participant_type = $%d", argID)
		args = append(args, *filter.ParticipantType)
		argID++
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateWinners(ctx context.Context, exec SQLExecutor, id int, winnerProposalIDs []int) error {
	winners := make(pq.Int64Array, 0, len(winnerProposalIDs))
	for _, proposalID := range winnerProposalIDs {
		winners = append(winners, int64(proposalID))
	}
	query := `UPDATE tournaments SET winner_proposal_ids = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, winners, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d winners: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, exec SQLExecutor, id int, logoKey *string) error {
	query := `UPDATE tournaments SET logo_key = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d logo: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) CreateSettings(ctx context.Context, exec SQLExecutor, s *models.TournamentSettings) error {
	document, err := jsonValue(s)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tournament_settings (tournament_id, status, document)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err = r.getExecutor(exec).QueryRowContext(ctx, query, s.TournamentID, s.Status, document).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		// Partial unique index: one non-deleted settings row per tournament.
		if errors.As(err, &pqErr) && pqErr.Constraint == "tournament_settings_active_uniq" {
			return ErrSettingsConflict
		}
		return fmt.Errorf("failed to create settings for tournament %d: %w", s.TournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetSettings(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.TournamentSettings, error) {
	query := `
		SELECT id, tournament_id, status, document, created_at
		FROM tournament_settings
		WHERE tournament_id = $1 AND status <> 'deleted'`

	var (
		settings models.TournamentSettings
		id       int
		status   models.TournamentStatus
		document []byte
	)
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID).
		Scan(&id, &settings.TournamentID, &status, &document, &settings.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to load settings for tournament %d: %w", tournamentID, err)
	}
	if err := scanJSON(document, &settings); err != nil {
		return nil, err
	}
	settings.ID = id
	settings.TournamentID = tournamentID
	settings.Status = status
	settings.Normalize()
	return &settings, nil
}

// ReplaceSettings soft-deletes the active settings row and inserts the new
// document, so bracket history keeps the configuration each round was
// generated under.
func (r *postgresTournamentRepository) ReplaceSettings(ctx context.Context, exec SQLExecutor, s *models.TournamentSettings) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`UPDATE tournament_settings SET status = 'deleted' WHERE tournament_id = $1 AND status <> 'deleted'`,
		s.TournamentID)
	if err != nil {
		return fmt.Errorf("failed to retire settings for tournament %d: %w", s.TournamentID, err)
	}

	document, err := jsonValue(s)
	if err != nil {
		return err
	}
	err = executor.QueryRowContext(ctx,
		`INSERT INTO tournament_settings (tournament_id, status, document)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		s.TournamentID, s.Status, document,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to replace settings for tournament %d: %w", s.TournamentID, err)
	}
	return nil
}
