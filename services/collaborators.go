package services

import (
	"context"
	"log/slog"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/google/uuid"
)

// FinancialLedger is the external financial collaborator. The engine never
// implements money movement; it only requests charges and keeps the returned
// transaction references.
type FinancialLedger interface {
	ChargeParticipationFee(ctx context.Context, proposal *models.TournamentTeamProposal, amount float64) (transactionRef string, err error)
	Refund(ctx context.Context, transactionRef string) error
	ChargeQuitPenalty(ctx context.Context, proposal *models.TournamentTeamProposal, amount float64, hoursBeforeStart int) error
}

// EventPublisher is the notification collaborator: fire-and-forget,
// at-least-once. brackets.Hub satisfies it.
type EventPublisher interface {
	Publish(topic string, tournamentID int, payload interface{})
}

// publishStatusEvent mirrors a committed lifecycle change onto its scope
// topic, so subscribers can track entity state without parsing full payloads.
func publishStatusEvent(publisher EventPublisher, tournamentID int, event models.StatusEvent) {
	if event.Changed() {
		publisher.Publish(string(event.Scope), tournamentID, event)
	}
}

// TeamRosterProvider resolves team membership and captaincy used when
// validating proposal submissions. Backed by the excluded team module.
type TeamRosterProvider interface {
	VerifyTeamMembers(ctx context.Context, teamID int, userIDs []int) error
	IsCaptain(ctx context.Context, teamID, userID int) (bool, error)
}

// LoggingLedger is the stand-in ledger used until the real financial service
// is attached: it logs every charge and fabricates transaction references.
type LoggingLedger struct {
	logger *slog.Logger
}

func NewLoggingLedger(logger *slog.Logger) *LoggingLedger {
	return &LoggingLedger{logger: logger}
}

func (l *LoggingLedger) ChargeParticipationFee(ctx context.Context, proposal *models.TournamentTeamProposal, amount float64) (string, error) {
	ref := uuid.NewString()
	l.logger.InfoContext(ctx, "participation fee charged",
		slog.Int("proposal_id", proposal.ID),
		slog.Float64("amount", amount),
		slog.String("transaction_ref", ref))
	return ref, nil
}

func (l *LoggingLedger) Refund(ctx context.Context, transactionRef string) error {
	l.logger.InfoContext(ctx, "fee refunded", slog.String("transaction_ref", transactionRef))
	return nil
}

func (l *LoggingLedger) ChargeQuitPenalty(ctx context.Context, proposal *models.TournamentTeamProposal, amount float64, hoursBeforeStart int) error {
	l.logger.InfoContext(ctx, "quit penalty charged",
		slog.Int("proposal_id", proposal.ID),
		slog.Float64("amount", amount),
		slog.Int("hours_before_start", hoursBeforeStart))
	return nil
}

// OpenRosterProvider accepts any roster, for leagues that do not run the team
// module.
type OpenRosterProvider struct{}

func (OpenRosterProvider) VerifyTeamMembers(ctx context.Context, teamID int, userIDs []int) error {
	return nil
}

func (OpenRosterProvider) IsCaptain(ctx context.Context, teamID, userID int) (bool, error) {
	return true, nil
}
