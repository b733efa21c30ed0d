package services

import "sync"

// TournamentLocks serializes progression work per tournament. Concurrent
// match resolutions inside one tournament mutate shared bracket state, so
// every write path takes the tournament lock before opening a transaction.
type TournamentLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewTournamentLocks() *TournamentLocks {
	return &TournamentLocks{locks: make(map[int]*sync.Mutex)}
}

func (t *TournamentLocks) Lock(tournamentID int) func() {
	t.mu.Lock()
	m, ok := t.locks[tournamentID]
	if !ok {
		m = &sync.Mutex{}
		t.locks[tournamentID] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}
