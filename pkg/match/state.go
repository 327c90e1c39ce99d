package match

import (
	"strings"
	"sync"
	"time"
)

// normalize lowercases a handle for map keys. Envelopes and persisted rows
// keep the caller's original case.
func normalize(handle string) string { return strings.ToLower(handle) }

// PlayerLocks claims player handles for the duration of an interaction. A
// handle is present exactly while its player is engaged: from invite to
// decline/cancel, through the active match, until the rematch window closes.
// The table is process-local, so a restart frees everyone.
type PlayerLocks struct {
	mu    sync.Mutex
	locks map[string]string // lowercased handle -> interaction id
}

func NewPlayerLocks() *PlayerLocks {
	return &PlayerLocks{locks: make(map[string]string)}
}

// ClaimPair claims both handles for one interaction. The claim is atomic:
// either both handles were free and are now held, or nothing changed and the
// handle that was already held is returned.
func (pl *PlayerLocks) ClaimPair(a, b, interactionID string) (string, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	ka, kb := normalize(a), normalize(b)
	if _, held := pl.locks[ka]; held {
		return a, false
	}
	if _, held := pl.locks[kb]; held {
		return b, false
	}
	pl.locks[ka] = interactionID
	pl.locks[kb] = interactionID
	return "", true
}

// Get returns the interaction id a handle is currently locked to.
func (pl *PlayerLocks) Get(handle string) (string, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	id, ok := pl.locks[normalize(handle)]
	return id, ok
}

// Held reports whether a handle is currently engaged.
func (pl *PlayerLocks) Held(handle string) bool {
	_, ok := pl.Get(handle)
	return ok
}

// Release frees the given handles. Releasing a free handle is a no-op, which
// keeps decline and expiry paths tolerant of double release.
func (pl *PlayerLocks) Release(handles ...string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	for _, h := range handles {
		delete(pl.locks, normalize(h))
	}
}

// PendingReport is the first result claim for a match, held in memory until
// the opponent confirms or disputes it.
type PendingReport struct {
	ReporterUsername string
	ClaimedWinner    string
}

// PendingReports keys first reports by match id.
type PendingReports struct {
	mu      sync.Mutex
	reports map[string]PendingReport
}

func NewPendingReports() *PendingReports {
	return &PendingReports{reports: make(map[string]PendingReport)}
}

// PutIfAbsent stores the first report for a match. It never overwrites: a
// second report for the same match fails and leaves the first claim intact.
func (pr *PendingReports) PutIfAbsent(matchID string, report PendingReport) bool {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if _, exists := pr.reports[matchID]; exists {
		return false
	}
	pr.reports[matchID] = report
	return true
}

func (pr *PendingReports) Get(matchID string) (PendingReport, bool) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	report, ok := pr.reports[matchID]
	return report, ok
}

func (pr *PendingReports) Remove(matchID string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	delete(pr.reports, matchID)
}

// respondResult is the outcome of one player's answer to a rematch offer.
type respondResult int

const (
	respondNotFound respondResult = iota
	respondForbidden
	respondDuplicate
	respondDeclined
	respondWaiting
	respondStarted
)

// rematchOffer is one open rematch window.
type rematchOffer struct {
	player1  string // original case, for envelopes
	player2  string
	accepted map[string]bool // lowercased handles that said yes
	timer    *time.Timer
}

// PendingRematches tracks rematch windows between match finalization and
// resolution. Every mutation happens under one mutex, so a response and the
// expiry timer cannot both win.
type PendingRematches struct {
	mu     sync.Mutex
	offers map[string]*rematchOffer
}

func NewPendingRematches() *PendingRematches {
	return &PendingRematches{offers: make(map[string]*rematchOffer)}
}

// Offer opens a rematch window for a finalized match and arms its expiry
// timer. A window of zero or less never expires. If an offer already exists
// for the match id the first one stands.
func (prm *PendingRematches) Offer(matchID, player1, player2 string, window time.Duration, expire func(matchID string)) {
	prm.mu.Lock()
	defer prm.mu.Unlock()
	if _, exists := prm.offers[matchID]; exists {
		return
	}
	offer := &rematchOffer{
		player1:  player1,
		player2:  player2,
		accepted: make(map[string]bool, 2),
	}
	if window > 0 && expire != nil {
		offer.timer = time.AfterFunc(window, func() { expire(matchID) })
	}
	prm.offers[matchID] = offer
}

// Respond applies one player's accept or decline atomically and reports how
// the offer resolved. Declines and completed handshakes consume the offer and
// stop its timer; the participants are returned for lock release and
// notifications.
func (prm *PendingRematches) Respond(matchID, username string, accept bool) (respondResult, string, string) {
	prm.mu.Lock()
	defer prm.mu.Unlock()
	offer, ok := prm.offers[matchID]
	if !ok {
		return respondNotFound, "", ""
	}
	p1, p2 := offer.player1, offer.player2
	key := normalize(username)
	if key != normalize(p1) && key != normalize(p2) {
		return respondForbidden, p1, p2
	}
	if offer.accepted[key] {
		return respondDuplicate, p1, p2
	}
	if !accept {
		prm.removeLocked(matchID, offer)
		return respondDeclined, p1, p2
	}
	offer.accepted[key] = true
	if len(offer.accepted) < 2 {
		return respondWaiting, p1, p2
	}
	prm.removeLocked(matchID, offer)
	return respondStarted, p1, p2
}

// Take consumes an offer if it is still open, returning its participants.
// Expiry goes through Take, so a response that already resolved the offer
// makes the expiry a no-op.
func (prm *PendingRematches) Take(matchID string) (string, string, bool) {
	prm.mu.Lock()
	defer prm.mu.Unlock()
	offer, ok := prm.offers[matchID]
	if !ok {
		return "", "", false
	}
	prm.removeLocked(matchID, offer)
	return offer.player1, offer.player2, true
}

// Contains reports whether a match still has an open rematch window.
func (prm *PendingRematches) Contains(matchID string) bool {
	prm.mu.Lock()
	defer prm.mu.Unlock()
	_, ok := prm.offers[matchID]
	return ok
}

// Shutdown stops every armed timer and clears the table.
func (prm *PendingRematches) Shutdown() {
	prm.mu.Lock()
	defer prm.mu.Unlock()
	for id, offer := range prm.offers {
		if offer.timer != nil {
			offer.timer.Stop()
		}
		delete(prm.offers, id)
	}
}

// removeLocked deletes an offer and stops its timer. Callers hold the mutex.
func (prm *PendingRematches) removeLocked(matchID string, offer *rematchOffer) {
	if offer.timer != nil {
		offer.timer.Stop()
	}
	delete(prm.offers, matchID)
}
