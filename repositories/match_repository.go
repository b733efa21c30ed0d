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
	ErrMatchNotFound      = errors.New("tournament match not found")
	ErrMatchRivalNotFound = errors.New("match rival not found")
	// ErrMatchNumberConflict is raised by the (series_id, match_number)
	// uniqueness constraint, guarding against double next-match generation.
	ErrMatchNumberConflict = errors.New("match number already exists in series")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.TournamentMatch) error
	GetWithRivals(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentMatch, error)
	ListBySeries(ctx context.Context, exec SQLExecutor, seriesID int) ([]*models.TournamentMatch, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateWinner(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, winnerMatchRivalID *int, hasNoWinner bool) error

	CreateRival(ctx context.Context, exec SQLExecutor, rival *models.TournamentMatchRival) error
	UpdateRival(ctx context.Context, exec SQLExecutor, rival *models.TournamentMatchRival) error
	CreateRivalParticipant(ctx context.Context, exec SQLExecutor, participant *models.TournamentMatchRivalParticipant) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.TournamentMatch) error {
	properties, err := jsonValue(match.Properties)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tournament_matches (series_id, match_number, status, has_no_winner, properties)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		match.SeriesID, match.MatchNumberInSeries, match.Status, match.HasNoWinner, properties,
	).Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "tournament_matches_series_id_match_number_key" {
			return ErrMatchNumberConflict
		}
		return fmt.Errorf("failed to create match %d in series %d: %w",
			match.MatchNumberInSeries, match.SeriesID, err)
	}
	return nil
}

const matchColumns = `id, series_id, match_number, status, has_no_winner, winner_match_rival_id, properties, created_at`

func scanMatch(scanner interface{ Scan(dest ...interface{}) error }) (*models.TournamentMatch, error) {
	match := &models.TournamentMatch{}
	var properties []byte
	err := scanner.Scan(&match.ID, &match.SeriesID, &match.MatchNumberInSeries,
		&match.Status, &match.HasNoWinner, &match.WinnerMatchRivalID, &properties, &match.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := scanJSON(properties, &match.Properties); err != nil {
		return nil, err
	}
	return match, nil
}

func (r *postgresMatchRepository) GetWithRivals(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM tournament_matches WHERE id = $1`
	match, err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	if err := loadMatchRivals(ctx, r.getExecutor(exec), match); err != nil {
		return nil, err
	}
	return match, nil
}

func (r *postgresMatchRepository) ListBySeries(ctx context.Context, exec SQLExecutor, seriesID int) ([]*models.TournamentMatch, error) {
	return listMatchesBySeries(ctx, r.getExecutor(exec), seriesID)
}

// listMatchesBySeries is shared with the series repository's detail loader.
func listMatchesBySeries(ctx context.Context, db SQLExecutor, seriesID int) ([]*models.TournamentMatch, error) {
	query := `SELECT ` + matchColumns + `
		FROM tournament_matches
		WHERE series_id = $1 AND status <> 'deleted'
		ORDER BY match_number ASC`

	rows, err := db.QueryContext(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for series %d: %w", seriesID, err)
	}
	defer rows.Close()

	matches := make([]*models.TournamentMatch, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, match := range matches {
		if err := loadMatchRivals(ctx, db, match); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func loadMatchRivals(ctx context.Context, db SQLExecutor, match *models.TournamentMatch) error {
	query := `
		SELECT id, match_id, series_rival_id, proposal_id, status, indicators, won_place, created_at
		FROM match_rivals
		WHERE match_id = $1
		ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, query, match.ID)
	if err != nil {
		return fmt.Errorf("failed to load rivals for match %d: %w", match.ID, err)
	}
	defer rows.Close()

	match.Rivals = match.Rivals[:0]
	for rows.Next() {
		rival := &models.TournamentMatchRival{}
		var indicators []byte
		if scanErr := rows.Scan(&rival.ID, &rival.MatchID, &rival.SeriesRivalID,
			&rival.ProposalID, &rival.Status, &indicators, &rival.WonPlace, &rival.CreatedAt); scanErr != nil {
			return fmt.Errorf("failed to scan match rival row: %w", scanErr)
		}
		if err := scanJSON(indicators, &rival.Indicators); err != nil {
			return err
		}
		match.Rivals = append(match.Rivals, rival)
	}
	return rows.Err()
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	query := `UPDATE tournament_matches SET status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update match %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateWinner(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, winnerMatchRivalID *int, hasNoWinner bool) error {
	query := `
		UPDATE tournament_matches
		SET status = $1, winner_match_rival_id = $2, has_no_winner = $3
		WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, winnerMatchRivalID, hasNoWinner, id)
	if err != nil {
		return fmt.Errorf("failed to update match %d winner: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CreateRival(ctx context.Context, exec SQLExecutor, rival *models.TournamentMatchRival) error {
	indicators, err := jsonValue(rival.Indicators)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO match_rivals (match_id, series_rival_id, proposal_id, status, indicators, won_place)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		rival.MatchID, rival.SeriesRivalID, rival.ProposalID, rival.Status, indicators, rival.WonPlace,
	).Scan(&rival.ID, &rival.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match rival (match %d, series rival %d): %w",
			rival.MatchID, rival.SeriesRivalID, err)
	}
	return nil
}

func (r *postgresMatchRepository) UpdateRival(ctx context.Context, exec SQLExecutor, rival *models.TournamentMatchRival) error {
	indicators, err := jsonValue(rival.Indicators)
	if err != nil {
		return err
	}
	query := `
		UPDATE match_rivals
		SET status = $1, indicators = $2, won_place = $3
		WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		rival.Status, indicators, rival.WonPlace, rival.ID)
	if err != nil {
		return fmt.Errorf("failed to update match rival %d: %w", rival.ID, err)
	}
	return checkAffectedRows(result, ErrMatchRivalNotFound)
}

func (r *postgresMatchRepository) CreateRivalParticipant(ctx context.Context, exec SQLExecutor, participant *models.TournamentMatchRivalParticipant) error {
	indicators, err := jsonValue(participant.Indicators)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO match_rival_participants (match_rival_id, team_participant_id, indicators)
		VALUES ($1, $2, $3)
		RETURNING id`
	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		participant.MatchRivalID, participant.TeamParticipantID, indicators,
	).Scan(&participant.ID)
	if err != nil {
		return fmt.Errorf("failed to create match rival participant: %w", err)
	}
	return nil
}
