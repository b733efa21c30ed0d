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
	ErrRoundNotFound = errors.New("tournament round not found")
	ErrRoundConflict = errors.New("round number already exists for this tournament")
)

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.TournamentRound) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRound, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentRound, error)
	FindOpenByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.TournamentRound, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	MarkLast(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.TournamentRound) error {
	query := `
		INSERT INTO tournament_rounds (tournament_id, round_number, is_last, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		round.TournamentID, round.RoundNumber, round.IsLast, round.Status,
	).Scan(&round.ID, &round.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "tournament_rounds_tournament_id_round_number_key" {
			return ErrRoundConflict
		}
		return fmt.Errorf("failed to create round %d for tournament %d: %w",
			round.RoundNumber, round.TournamentID, err)
	}
	return nil
}

const roundColumns = `id, tournament_id, round_number, is_last, status, created_at`

func scanRound(scanner interface{ Scan(dest ...interface{}) error }) (*models.TournamentRound, error) {
	round := &models.TournamentRound{}
	err := scanner.Scan(&round.ID, &round.TournamentID, &round.RoundNumber,
		&round.IsLast, &round.Status, &round.CreatedAt)
	if err != nil {
		return nil, err
	}
	return round, nil
}

func (r *postgresRoundRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentRound, error) {
	query := `SELECT ` + roundColumns + ` FROM tournament_rounds WHERE id = $1`
	round, err := scanRound(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan round %d: %w", id, err)
	}
	return round, nil
}

func (r *postgresRoundRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentRound, error) {
	query := `SELECT ` + roundColumns + `
		FROM tournament_rounds
		WHERE tournament_id = $1 AND status <> 'deleted'
		ORDER BY round_number ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	rounds := make([]*models.TournamentRound, 0)
	for rows.Next() {
		round, scanErr := scanRound(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", scanErr)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// FindOpenByTournament returns the single round that is not yet settled.
func (r *postgresRoundRepository) FindOpenByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.TournamentRound, error) {
	query := `SELECT ` + roundColumns + `
		FROM tournament_rounds
		WHERE tournament_id = $1 AND status NOT IN ('finished', 'declined', 'deleted')
		ORDER BY round_number DESC
		LIMIT 1`

	round, err := scanRound(r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to find open round for tournament %d: %w", tournamentID, err)
	}
	return round, nil
}

func (r *postgresRoundRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	query := `UPDATE tournament_rounds SET status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update round %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) MarkLast(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE tournament_rounds SET is_last = TRUE WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark round %d as last: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}
