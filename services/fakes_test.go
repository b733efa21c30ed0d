package services

import (
	"context"
	"sort"
	"sync"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/repositories"
)

// fakeStore is a shared in-memory backing for all fake repositories, so the
// cascade services observe each other's writes the way they would through a
// database transaction.
type fakeStore struct {
	mu sync.Mutex

	tournaments map[int]*models.Tournament
	settings    map[int]*models.TournamentSettings
	proposals   map[int]*models.TournamentTeamProposal
	rounds      map[int]*models.TournamentRound
	series      map[int]*models.TournamentSeries
	rivals      map[int]*models.TournamentSeriesRival
	matches     map[int]*models.TournamentMatch
	matchRivals map[int]*models.TournamentMatchRival

	// links: parent series id -> child series id.
	links map[int]int

	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tournaments: make(map[int]*models.Tournament),
		settings:    make(map[int]*models.TournamentSettings),
		proposals:   make(map[int]*models.TournamentTeamProposal),
		rounds:      make(map[int]*models.TournamentRound),
		series:      make(map[int]*models.TournamentSeries),
		rivals:      make(map[int]*models.TournamentSeriesRival),
		matches:     make(map[int]*models.TournamentMatch),
		matchRivals: make(map[int]*models.TournamentMatchRival),
		links:       make(map[int]int),
	}
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

// fakeTxManager runs the function directly; the shared store stands in for
// transactional visibility.
type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *fakePublisher) Publish(topic string, tournamentID int, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
}

func (p *fakePublisher) published(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		if t == topic {
			return true
		}
	}
	return false
}

type fakeLedger struct {
	mu           sync.Mutex
	charges      []float64
	refunds      []string
	penalties    []float64
	failCharges  bool
	nextRefIndex int
}

func (l *fakeLedger) ChargeParticipationFee(ctx context.Context, proposal *models.TournamentTeamProposal, amount float64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCharges {
		return "", context.DeadlineExceeded
	}
	l.charges = append(l.charges, amount)
	l.nextRefIndex++
	return "txn-" + string(rune('a'+l.nextRefIndex)), nil
}

func (l *fakeLedger) Refund(ctx context.Context, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refunds = append(l.refunds, ref)
	return nil
}

func (l *fakeLedger) ChargeQuitPenalty(ctx context.Context, proposal *models.TournamentTeamProposal, amount float64, hoursBeforeStart int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.penalties = append(l.penalties, amount)
	return nil
}

// fakeRoster accepts every roster. With captains set, IsCaptain answers from
// the team id -> captain user id table instead of always true.
type fakeRoster struct {
	captains map[int]int
}

func (r *fakeRoster) VerifyTeamMembers(ctx context.Context, teamID int, userIDs []int) error {
	return nil
}

func (r *fakeRoster) IsCaptain(ctx context.Context, teamID, userID int) (bool, error) {
	if r.captains == nil {
		return true, nil
	}
	return r.captains[teamID] == userID, nil
}

// ---- tournament repository ----

type fakeTournamentRepo struct{ store *fakeStore }

func (r *fakeTournamentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tournament.ID = r.store.id()
	r.store.tournaments[tournament.ID] = tournament
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tournament, ok := r.store.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *tournament
	return &copied, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, exec repositories.SQLExecutor, filter repositories.ListTournamentsFilter) ([]*models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Tournament
	for _, tournament := range r.store.tournaments {
		if filter.Status != nil && tournament.Status != *filter.Status {
			continue
		}
		copied := *tournament
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tournament, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	tournament.Status = status
	return nil
}

func (r *fakeTournamentRepo) UpdateWinners(ctx context.Context, exec repositories.SQLExecutor, id int, winnerProposalIDs []int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tournament, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	tournament.WinnerProposalIDs = winnerProposalIDs
	return nil
}

func (r *fakeTournamentRepo) UpdateLogoKey(ctx context.Context, exec repositories.SQLExecutor, id int, logoKey *string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tournament, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	tournament.LogoKey = logoKey
	return nil
}

func (r *fakeTournamentRepo) CreateSettings(ctx context.Context, exec repositories.SQLExecutor, settings *models.TournamentSettings) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	settings.ID = r.store.id()
	r.store.settings[settings.TournamentID] = settings
	return nil
}

func (r *fakeTournamentRepo) GetSettings(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.TournamentSettings, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	settings, ok := r.store.settings[tournamentID]
	if !ok {
		return nil, repositories.ErrSettingsNotFound
	}
	copied := *settings
	return &copied, nil
}

func (r *fakeTournamentRepo) ReplaceSettings(ctx context.Context, exec repositories.SQLExecutor, settings *models.TournamentSettings) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	settings.ID = r.store.id()
	r.store.settings[settings.TournamentID] = settings
	return nil
}

// ---- proposal repository ----

type fakeProposalRepo struct{ store *fakeStore }

func (r *fakeProposalRepo) Create(ctx context.Context, exec repositories.SQLExecutor, proposal *models.TournamentTeamProposal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.proposals {
		if existing.TournamentID != proposal.TournamentID {
			continue
		}
		switch existing.Status {
		case models.ProposalRejected, models.ProposalCancelled:
			continue
		}
		if proposal.TeamID != nil && existing.TeamID != nil && *existing.TeamID == *proposal.TeamID {
			return repositories.ErrProposalConflict
		}
		if proposal.UserID != nil && existing.UserID != nil && *existing.UserID == *proposal.UserID {
			return repositories.ErrProposalConflict
		}
	}
	proposal.ID = r.store.id()
	// The INSERT carries no fee column; a transaction ref only lands through
	// SetFeeTransactionRef.
	stored := *proposal
	stored.FeeTransactionRef = nil
	r.store.proposals[proposal.ID] = &stored
	return nil
}

func (r *fakeProposalRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentTeamProposal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	proposal, ok := r.store.proposals[id]
	if !ok {
		return nil, repositories.ErrProposalNotFound
	}
	copied := *proposal
	return &copied, nil
}

func (r *fakeProposalRepo) FindByTeamAndTournament(ctx context.Context, exec repositories.SQLExecutor, teamID, tournamentID int) (*models.TournamentTeamProposal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var found *models.TournamentTeamProposal
	for _, proposal := range r.store.proposals {
		if proposal.TournamentID == tournamentID && proposal.TeamID != nil && *proposal.TeamID == teamID {
			if found == nil || proposal.ID > found.ID {
				found = proposal
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

func (r *fakeProposalRepo) FindByUserAndTournament(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int) (*models.TournamentTeamProposal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var found *models.TournamentTeamProposal
	for _, proposal := range r.store.proposals {
		if proposal.TournamentID == tournamentID && proposal.UserID != nil && *proposal.UserID == userID {
			if found == nil || proposal.ID > found.ID {
				found = proposal
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

func (r *fakeProposalRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, statusFilter *models.ParticipationStatus) ([]*models.TournamentTeamProposal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.TournamentTeamProposal
	for _, proposal := range r.store.proposals {
		if proposal.TournamentID != tournamentID {
			continue
		}
		if statusFilter != nil && proposal.Status != *statusFilter {
			continue
		}
		copied := *proposal
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeProposalRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.ParticipationStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	proposal, ok := r.store.proposals[id]
	if !ok {
		return repositories.ErrProposalNotFound
	}
	proposal.Status = status
	return nil
}

func (r *fakeProposalRepo) SetFeeTransactionRef(ctx context.Context, exec repositories.SQLExecutor, id int, ref string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	proposal, ok := r.store.proposals[id]
	if !ok {
		return repositories.ErrProposalNotFound
	}
	proposal.FeeTransactionRef = &ref
	return nil
}

// ---- round repository ----

type fakeRoundRepo struct{ store *fakeStore }

func (r *fakeRoundRepo) Create(ctx context.Context, exec repositories.SQLExecutor, round *models.TournamentRound) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	round.ID = r.store.id()
	r.store.rounds[round.ID] = round
	return nil
}

func (r *fakeRoundRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentRound, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	round, ok := r.store.rounds[id]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	copied := *round
	copied.Series = nil
	return &copied, nil
}

func (r *fakeRoundRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.TournamentRound, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.TournamentRound
	for _, round := range r.store.rounds {
		if round.TournamentID != tournamentID || round.Status == models.StatusDeleted {
			continue
		}
		copied := *round
		copied.Series = nil
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *fakeRoundRepo) FindOpenByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.TournamentRound, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, round := range r.store.rounds {
		if round.TournamentID == tournamentID && !round.Status.IsSettled() {
			copied := *round
			copied.Series = nil
			return &copied, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (r *fakeRoundRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	round, ok := r.store.rounds[id]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	round.Status = status
	return nil
}

func (r *fakeRoundRepo) MarkLast(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	round, ok := r.store.rounds[id]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	round.IsLast = true
	return nil
}

// ---- series repository ----

type fakeSeriesRepo struct{ store *fakeStore }

func (r *fakeSeriesRepo) Create(ctx context.Context, exec repositories.SQLExecutor, series *models.TournamentSeries) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	series.ID = r.store.id()
	r.store.series[series.ID] = series
	return nil
}

func (r *fakeSeriesRepo) snapshot(id int, withMatches bool) (*models.TournamentSeries, error) {
	series, ok := r.store.series[id]
	if !ok {
		return nil, repositories.ErrSeriesNotFound
	}
	copied := *series
	copied.Rivals = nil
	copied.Matches = nil
	copied.ParentSeriesIDs = nil
	copied.ChildSeriesID = nil

	for _, rival := range r.store.rivals {
		if rival.SeriesID == id {
			rivalCopy := *rival
			copied.Rivals = append(copied.Rivals, &rivalCopy)
		}
	}
	sort.Slice(copied.Rivals, func(i, j int) bool { return copied.Rivals[i].ID < copied.Rivals[j].ID })

	for parent, child := range r.store.links {
		if parent == id {
			childCopy := child
			copied.ChildSeriesID = &childCopy
		}
		if child == id {
			copied.ParentSeriesIDs = append(copied.ParentSeriesIDs, parent)
		}
	}
	sort.Ints(copied.ParentSeriesIDs)

	if withMatches {
		for _, match := range r.store.matches {
			if match.SeriesID != id || match.Status == models.StatusDeleted {
				continue
			}
			matchCopy := *match
			matchCopy.Rivals = nil
			for _, matchRival := range r.store.matchRivals {
				if matchRival.MatchID == match.ID {
					mrCopy := *matchRival
					matchCopy.Rivals = append(matchCopy.Rivals, &mrCopy)
				}
			}
			sort.Slice(matchCopy.Rivals, func(i, j int) bool { return matchCopy.Rivals[i].ID < matchCopy.Rivals[j].ID })
			copied.Matches = append(copied.Matches, &matchCopy)
		}
		sort.Slice(copied.Matches, func(i, j int) bool {
			return copied.Matches[i].MatchNumberInSeries < copied.Matches[j].MatchNumberInSeries
		})
	}
	return &copied, nil
}

func (r *fakeSeriesRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentSeries, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.snapshot(id, false)
}

func (r *fakeSeriesRepo) GetWithDetails(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentSeries, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.snapshot(id, true)
}

func (r *fakeSeriesRepo) ListByRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) ([]*models.TournamentSeries, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.TournamentSeries
	for id, series := range r.store.series {
		if series.RoundID != roundID || series.Status == models.StatusDeleted {
			continue
		}
		copied, err := r.snapshot(id, false)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *fakeSeriesRepo) UpdateStatusWinner(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus, winnerRivalID *int, hasNoWinner bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	series, ok := r.store.series[id]
	if !ok {
		return repositories.ErrSeriesNotFound
	}
	series.Status = status
	series.WinnerRivalID = winnerRivalID
	series.HasNoWinner = hasNoWinner
	return nil
}

func (r *fakeSeriesRepo) AddRival(ctx context.Context, exec repositories.SQLExecutor, rival *models.TournamentSeriesRival) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.rivals {
		if existing.SeriesID == rival.SeriesID && existing.ProposalID == rival.ProposalID {
			return repositories.ErrSeriesRivalConflict
		}
	}
	rival.ID = r.store.id()
	r.store.rivals[rival.ID] = rival
	return nil
}

func (r *fakeSeriesRepo) UpdateRival(ctx context.Context, exec repositories.SQLExecutor, rival *models.TournamentSeriesRival) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.rivals[rival.ID]
	if !ok {
		return repositories.ErrSeriesRivalNotFound
	}
	*existing = *rival
	return nil
}

func (r *fakeSeriesRepo) Link(ctx context.Context, exec repositories.SQLExecutor, parentSeriesID, childSeriesID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.links[parentSeriesID] = childSeriesID
	return nil
}

// ---- match repository ----

type fakeMatchRepo struct{ store *fakeStore }

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.TournamentMatch) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.matches {
		if existing.SeriesID == match.SeriesID &&
			existing.MatchNumberInSeries == match.MatchNumberInSeries &&
			existing.Status != models.StatusDeleted {
			return repositories.ErrMatchNumberConflict
		}
	}
	match.ID = r.store.id()
	r.store.matches[match.ID] = match
	return nil
}

func (r *fakeMatchRepo) GetWithRivals(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.TournamentMatch, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	match, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *match
	copied.Rivals = nil
	for _, matchRival := range r.store.matchRivals {
		if matchRival.MatchID == id {
			mrCopy := *matchRival
			copied.Rivals = append(copied.Rivals, &mrCopy)
		}
	}
	sort.Slice(copied.Rivals, func(i, j int) bool { return copied.Rivals[i].ID < copied.Rivals[j].ID })
	return &copied, nil
}

func (r *fakeMatchRepo) ListBySeries(ctx context.Context, exec repositories.SQLExecutor, seriesID int) ([]*models.TournamentMatch, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.TournamentMatch
	for id, match := range r.store.matches {
		if match.SeriesID != seriesID || match.Status == models.StatusDeleted {
			continue
		}
		copied := *match
		copied.Rivals = nil
		for _, matchRival := range r.store.matchRivals {
			if matchRival.MatchID == id {
				mrCopy := *matchRival
				copied.Rivals = append(copied.Rivals, &mrCopy)
			}
		}
		sort.Slice(copied.Rivals, func(i, j int) bool { return copied.Rivals[i].ID < copied.Rivals[j].ID })
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchNumberInSeries < out[j].MatchNumberInSeries })
	return out, nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	match, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.Status = status
	return nil
}

func (r *fakeMatchRepo) UpdateWinner(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus, winnerMatchRivalID *int, hasNoWinner bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	match, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.Status = status
	match.WinnerMatchRivalID = winnerMatchRivalID
	match.HasNoWinner = hasNoWinner
	return nil
}

func (r *fakeMatchRepo) CreateRival(ctx context.Context, exec repositories.SQLExecutor, rival *models.TournamentMatchRival) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rival.ID = r.store.id()
	r.store.matchRivals[rival.ID] = rival
	return nil
}

func (r *fakeMatchRepo) UpdateRival(ctx context.Context, exec repositories.SQLExecutor, rival *models.TournamentMatchRival) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.matchRivals[rival.ID]
	if !ok {
		return repositories.ErrMatchRivalNotFound
	}
	*existing = *rival
	return nil
}

func (r *fakeMatchRepo) CreateRivalParticipant(ctx context.Context, exec repositories.SQLExecutor, participant *models.TournamentMatchRivalParticipant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	participant.ID = r.store.id()
	return nil
}
