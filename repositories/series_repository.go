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
	ErrSeriesNotFound      = errors.New("tournament series not found")
	ErrSeriesRivalNotFound = errors.New("series rival not found")
	// ErrSeriesRivalConflict is raised by the (series_id, proposal_id)
	// uniqueness constraint. Winner advancement relies on it for idempotence.
	ErrSeriesRivalConflict = errors.New("rival already present in series")
)

type SeriesRepository interface {
	Create(ctx context.Context, exec SQLExecutor, series *models.TournamentSeries) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentSeries, error)
	// GetWithDetails loads rivals, matches (with their rivals) and
	// parent/child links.
	GetWithDetails(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentSeries, error)
	// ListByRound loads every non-deleted series of a round with rivals and
	// links, but without matches.
	ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.TournamentSeries, error)
	UpdateStatusWinner(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, winnerRivalID *int, hasNoWinner bool) error

	AddRival(ctx context.Context, exec SQLExecutor, rival *models.TournamentSeriesRival) error
	UpdateRival(ctx context.Context, exec SQLExecutor, rival *models.TournamentSeriesRival) error

	Link(ctx context.Context, exec SQLExecutor, parentSeriesID, childSeriesID int) error
}

type postgresSeriesRepository struct {
	db *sql.DB
}

func NewPostgresSeriesRepository(db *sql.DB) SeriesRepository {
	return &postgresSeriesRepository{db: db}
}

func (r *postgresSeriesRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSeriesRepository) Create(ctx context.Context, exec SQLExecutor, series *models.TournamentSeries) error {
	query := `
		INSERT INTO tournament_series (round_id, position, status, has_no_winner)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		series.RoundID, series.Position, series.Status, series.HasNoWinner,
	).Scan(&series.ID, &series.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create series at round %d position %d: %w",
			series.RoundID, series.Position, err)
	}
	return nil
}

const seriesColumns = `id, round_id, position, status, has_no_winner, winner_rival_id, created_at`

func scanSeries(scanner interface{ Scan(dest ...interface{}) error }) (*models.TournamentSeries, error) {
	series := &models.TournamentSeries{}
	err := scanner.Scan(&series.ID, &series.RoundID, &series.Position,
		&series.Status, &series.HasNoWinner, &series.WinnerRivalID, &series.CreatedAt)
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (r *postgresSeriesRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentSeries, error) {
	query := `SELECT ` + seriesColumns + ` FROM tournament_series WHERE id = $1`
	series, err := scanSeries(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to scan series %d: %w", id, err)
	}
	return series, nil
}

func (r *postgresSeriesRepository) GetWithDetails(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentSeries, error) {
	series, err := r.GetByID(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadRivals(ctx, exec, series); err != nil {
		return nil, err
	}
	if err := r.loadLinks(ctx, exec, series); err != nil {
		return nil, err
	}
	if err := r.loadMatches(ctx, exec, series); err != nil {
		return nil, err
	}
	return series, nil
}

func (r *postgresSeriesRepository) ListByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.TournamentSeries, error) {
	query := `SELECT ` + seriesColumns + `
		FROM tournament_series
		WHERE round_id = $1 AND status <> 'deleted'
		ORDER BY position ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series for round %d: %w", roundID, err)
	}
	defer rows.Close()

	seriesList := make([]*models.TournamentSeries, 0)
	for rows.Next() {
		series, scanErr := scanSeries(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", scanErr)
		}
		seriesList = append(seriesList, series)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, series := range seriesList {
		if err := r.loadRivals(ctx, exec, series); err != nil {
			return nil, err
		}
		if err := r.loadLinks(ctx, exec, series); err != nil {
			return nil, err
		}
	}
	return seriesList, nil
}

func (r *postgresSeriesRepository) UpdateStatusWinner(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus, winnerRivalID *int, hasNoWinner bool) error {
	query := `
		UPDATE tournament_series
		SET status = $1, winner_rival_id = $2, has_no_winner = $3
		WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, winnerRivalID, hasNoWinner, id)
	if err != nil {
		return fmt.Errorf("failed to update series %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrSeriesNotFound)
}

func (r *postgresSeriesRepository) AddRival(ctx context.Context, exec SQLExecutor, rival *models.TournamentSeriesRival) error {
	indicators, err := jsonValue(rival.Indicators)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO series_rivals (series_id, proposal_id, status, indicators, won_place)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		rival.SeriesID, rival.ProposalID, rival.Status, indicators, rival.WonPlace,
	).Scan(&rival.ID, &rival.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "series_rivals_series_id_proposal_id_key" {
			return ErrSeriesRivalConflict
		}
		return fmt.Errorf("failed to add rival (series %d, proposal %d): %w",
			rival.SeriesID, rival.ProposalID, err)
	}
	return nil
}

func (r *postgresSeriesRepository) UpdateRival(ctx context.Context, exec SQLExecutor, rival *models.TournamentSeriesRival) error {
	indicators, err := jsonValue(rival.Indicators)
	if err != nil {
		return err
	}
	query := `
		UPDATE series_rivals
		SET status = $1, indicators = $2, won_place = $3
		WHERE id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		rival.Status, indicators, rival.WonPlace, rival.ID)
	if err != nil {
		return fmt.Errorf("failed to update series rival %d: %w", rival.ID, err)
	}
	return checkAffectedRows(result, ErrSeriesRivalNotFound)
}

// Link records a parent->child edge in the junction table. Re-linking the
// same pair is a no-op.
func (r *postgresSeriesRepository) Link(ctx context.Context, exec SQLExecutor, parentSeriesID, childSeriesID int) error {
	query := `
		INSERT INTO series_links (parent_series_id, child_series_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	if _, err := r.getExecutor(exec).ExecContext(ctx, query, parentSeriesID, childSeriesID); err != nil {
		return fmt.Errorf("failed to link series %d -> %d: %w", parentSeriesID, childSeriesID, err)
	}
	return nil
}

func (r *postgresSeriesRepository) loadRivals(ctx context.Context, exec SQLExecutor, series *models.TournamentSeries) error {
	query := `
		SELECT id, series_id, proposal_id, status, indicators, won_place, created_at
		FROM series_rivals
		WHERE series_id = $1
		ORDER BY id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, series.ID)
	if err != nil {
		return fmt.Errorf("failed to load rivals for series %d: %w", series.ID, err)
	}
	defer rows.Close()

	series.Rivals = series.Rivals[:0]
	for rows.Next() {
		rival := &models.TournamentSeriesRival{}
		var indicators []byte
		if scanErr := rows.Scan(&rival.ID, &rival.SeriesID, &rival.ProposalID,
			&rival.Status, &indicators, &rival.WonPlace, &rival.CreatedAt); scanErr != nil {
			return fmt.Errorf("failed to scan series rival row: %w", scanErr)
		}
		if err := scanJSON(indicators, &rival.Indicators); err != nil {
			return err
		}
		series.Rivals = append(series.Rivals, rival)
	}
	return rows.Err()
}

func (r *postgresSeriesRepository) loadLinks(ctx context.Context, exec SQLExecutor, series *models.TournamentSeries) error {
	rows, err := r.getExecutor(exec).QueryContext(ctx,
		`SELECT parent_series_id FROM series_links WHERE child_series_id = $1 ORDER BY parent_series_id`,
		series.ID)
	if err != nil {
		return fmt.Errorf("failed to load parent links for series %d: %w", series.ID, err)
	}
	defer rows.Close()

	series.ParentSeriesIDs = series.ParentSeriesIDs[:0]
	for rows.Next() {
		var parentID int
		if scanErr := rows.Scan(&parentID); scanErr != nil {
			return fmt.Errorf("failed to scan series link row: %w", scanErr)
		}
		series.ParentSeriesIDs = append(series.ParentSeriesIDs, parentID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var childID sql.NullInt64
	err = r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT child_series_id FROM series_links WHERE parent_series_id = $1 LIMIT 1`,
		series.ID).Scan(&childID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to load child link for series %d: %w", series.ID, err)
	}
	if childID.Valid {
		child := int(childID.Int64)
		series.ChildSeriesID = &child
	} else {
		series.ChildSeriesID = nil
	}
	return nil
}

func (r *postgresSeriesRepository) loadMatches(ctx context.Context, exec SQLExecutor, series *models.TournamentSeries) error {
	matches, err := listMatchesBySeries(ctx, r.getExecutor(exec), series.ID)
	if err != nil {
		return err
	}
	series.Matches = matches
	return nil
}
