package services

import "errors"

// Shared error kinds surfaced to the transport layer. Validation and
// not-found errors are never retried; generation failures are all-or-nothing.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Proposal registry
	ErrSignUpClosed        = errors.New("tournament is not open for sign-up")
	ErrRosterSizeViolation = errors.New("team roster size out of allowed range")
	ErrProposalDuplicate   = errors.New("team or user already proposed for this tournament")
	ErrFeeChargeFailed     = errors.New("participation fee charge failed")

	// Bracket generation
	ErrGenerationFailed     = errors.New("bracket generation failed")
	ErrNotEnoughTeams       = errors.New("not enough approved teams to generate bracket")
	ErrTooManyTeams         = errors.New("approved teams exceed tournament capacity")
	ErrWrongTournamentState = errors.New("operation not allowed in current tournament status")

	// Match resolution
	ErrMatchIndicatorsMissing = errors.New("match rival is missing required indicator values")
	ErrMatchAlreadyResolved   = errors.New("match already has a persisted winner")

	// Series / round progression
	ErrSeriesNotFinishable = errors.New("series cannot be finished yet")
	ErrMatchStillOpen      = errors.New("series has an unsettled match")
	ErrSeriesLimitReached  = errors.New("series already holds its full match count")
	ErrSeriesClinched      = errors.New("a rival already clinched the series")
	ErrRoundNotComplete    = errors.New("round still has unsettled series")

	// Access
	ErrForbiddenOperation = errors.New("operation not allowed for the current actor")
	ErrSelfReportDisabled = errors.New("self-service result reporting is disabled for this tournament")
)
