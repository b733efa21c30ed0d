package models

// TournamentStatus is the shared lifecycle enum for tournaments, rounds,
// series and matches. Only a subset of values is meaningful below the
// tournament scope (a match never passes through sign_up).
type TournamentStatus string

const (
	StatusCreated    TournamentStatus = "created"
	StatusSignUp     TournamentStatus = "sign_up"
	StatusAdjustment TournamentStatus = "adjustment"
	StatusStarted    TournamentStatus = "started"
	StatusPause      TournamentStatus = "pause"
	StatusFinished   TournamentStatus = "finished"
	StatusDeclined   TournamentStatus = "declined"
	StatusDeleted    TournamentStatus = "deleted"
)

// IsActive reports whether the entity is still progressing through the
// bracket, i.e. it has not reached a terminal state.
func (s TournamentStatus) IsActive() bool {
	switch s {
	case StatusCreated, StatusSignUp, StatusAdjustment, StatusStarted, StatusPause:
		return true
	}
	return false
}

func (s TournamentStatus) IsFinished() bool {
	return s == StatusFinished
}

// IsCancelled reports whether the entity reached one of the cancel terminals.
func (s TournamentStatus) IsCancelled() bool {
	return s == StatusDeclined || s == StatusDeleted
}

func (s TournamentStatus) IsTerminal() bool {
	return s.IsFinished() || s.IsCancelled()
}

// IsSettled reports whether a series or round no longer blocks progression:
// it is finished or was cancelled by an operator.
func (s TournamentStatus) IsSettled() bool {
	return s.IsTerminal()
}

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusSignUp, StatusAdjustment, StatusStarted,
		StatusPause, StatusFinished, StatusDeclined, StatusDeleted:
		return true
	}
	return false
}
