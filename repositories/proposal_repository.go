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
	ErrProposalNotFound = errors.New("team proposal not found")
	// ErrProposalConflict is raised by the (tournament_id, team_id) /
	// (tournament_id, user_id) uniqueness constraints.
	ErrProposalConflict = errors.New("team or user already proposed for this tournament")
)

type ProposalRepository interface {
	Create(ctx context.Context, exec SQLExecutor, proposal *models.TournamentTeamProposal) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentTeamProposal, error)
	FindByTeamAndTournament(ctx context.Context, exec SQLExecutor, teamID, tournamentID int) (*models.TournamentTeamProposal, error)
	FindByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*models.TournamentTeamProposal, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.ParticipationStatus) ([]*models.TournamentTeamProposal, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipationStatus) error
	SetFeeTransactionRef(ctx context.Context, exec SQLExecutor, id int, ref string) error
}

type postgresProposalRepository struct {
	db *sql.DB
}

func NewPostgresProposalRepository(db *sql.DB) ProposalRepository {
	return &postgresProposalRepository{db: db}
}

func (r *postgresProposalRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresProposalRepository) Create(ctx context.Context, exec SQLExecutor, p *models.TournamentTeamProposal) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO team_proposals (tournament_id, team_id, user_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		p.TournamentID, p.TeamID, p.UserID, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrProposalConflict
		}
		return fmt.Errorf("failed to create proposal for tournament %d: %w", p.TournamentID, err)
	}

	for _, member := range p.Participants {
		member.ProposalID = p.ID
		err := executor.QueryRowContext(ctx,
			`INSERT INTO team_participants (proposal_id, user_id, role)
			 VALUES ($1, $2, $3) RETURNING id, created_at`,
			member.ProposalID, member.UserID, member.Role,
		).Scan(&member.ID, &member.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create roster member for proposal %d: %w", p.ID, err)
		}
	}
	return nil
}

const proposalColumns = `id, tournament_id, team_id, user_id, status, fee_transaction_ref, created_at`

func scanProposal(scanner interface{ Scan(dest ...interface{}) error }) (*models.TournamentTeamProposal, error) {
	p := &models.TournamentTeamProposal{}
	err := scanner.Scan(&p.ID, &p.TournamentID, &p.TeamID, &p.UserID,
		&p.Status, &p.FeeTransactionRef, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresProposalRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.TournamentTeamProposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM team_proposals WHERE id = $1`
	p, err := scanProposal(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to scan proposal %d: %w", id, err)
	}
	if err := r.loadParticipants(ctx, exec, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresProposalRepository) FindByTeamAndTournament(ctx context.Context, exec SQLExecutor, teamID, tournamentID int) (*models.TournamentTeamProposal, error) {
	query := `SELECT ` + proposalColumns + `
		FROM team_proposals WHERE team_id = $1 AND tournament_id = $2
		ORDER BY id DESC LIMIT 1`
	p, err := scanProposal(r.getExecutor(exec).QueryRowContext(ctx, query, teamID, tournamentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find proposal (team %d, tournament %d): %w", teamID, tournamentID, err)
	}
	return p, nil
}

func (r *postgresProposalRepository) FindByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*models.TournamentTeamProposal, error) {
	query := `SELECT ` + proposalColumns + `
		FROM team_proposals WHERE user_id = $1 AND tournament_id = $2
		ORDER BY id DESC LIMIT 1`
	p, err := scanProposal(r.getExecutor(exec).QueryRowContext(ctx, query, userID, tournamentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find proposal (user %d, tournament %d): %w", userID, tournamentID, err)
	}
	return p, nil
}

func (r *postgresProposalRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.ParticipationStatus) ([]*models.TournamentTeamProposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM team_proposals WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if statusFilter != nil {
		query += ` AND status = $2`
		args = append(args, *statusFilter)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	proposals := make([]*models.TournamentTeamProposal, 0)
	for rows.Next() {
		p, scanErr := scanProposal(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan proposal row: %w", scanErr)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range proposals {
		if err := r.loadParticipants(ctx, exec, p); err != nil {
			return nil, err
		}
	}
	return proposals, nil
}

func (r *postgresProposalRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipationStatus) error {
	query := `UPDATE team_proposals SET status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update proposal %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrProposalNotFound)
}

func (r *postgresProposalRepository) SetFeeTransactionRef(ctx context.Context, exec SQLExecutor, id int, ref string) error {
	query := `UPDATE team_proposals SET fee_transaction_ref = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, ref, id)
	if err != nil {
		return fmt.Errorf("failed to set fee transaction ref for proposal %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrProposalNotFound)
}

func (r *postgresProposalRepository) loadParticipants(ctx context.Context, exec SQLExecutor, p *models.TournamentTeamProposal) error {
	rows, err := r.getExecutor(exec).QueryContext(ctx,
		`SELECT id, proposal_id, user_id, role, created_at
		 FROM team_participants WHERE proposal_id = $1 ORDER BY id ASC`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load roster for proposal %d: %w", p.ID, err)
	}
	defer rows.Close()

	p.Participants = p.Participants[:0]
	for rows.Next() {
		member := &models.TournamentTeamParticipant{}
		if scanErr := rows.Scan(&member.ID, &member.ProposalID, &member.UserID,
			&member.Role, &member.CreatedAt); scanErr != nil {
			return fmt.Errorf("failed to scan roster member row: %w", scanErr)
		}
		p.Participants = append(p.Participants, member)
	}
	return rows.Err()
}
