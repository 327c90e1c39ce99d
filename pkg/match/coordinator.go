// Package match implements the match lifecycle: invite, accept, report,
// two-phase result confirmation, rating finalization, and rematch offers.
//
// The coordinator is the only writer of the process-local coordination state
// (player locks, pending reports, pending rematches) and the only caller of
// the rating engine. Every state transition fans one envelope out to each
// participant over the push hub. Mutation order within a transition is:
// coordination maps first, then durable rows, then push — except that a
// pending report is consumed only after its outcome has been persisted, so a
// failed finalization can be retried with another confirm.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MattMyers204453/smashrank-api/pkg/ladder"
	"github.com/MattMyers204453/smashrank-api/pkg/push"
	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

// characterUnknown stands in when a player enters a match without a pool
// check-in.
const characterUnknown = "Unknown"

// MatchStore is the persistence surface the coordinator needs.
type MatchStore interface {
	InsertMatch(ctx context.Context, m *store.Match) error
	MatchByID(ctx context.Context, id string) (*store.Match, error)
	UpdateMatch(ctx context.Context, m *store.Match) error
	UserIDByUsername(ctx context.Context, username string) (string, error)
}

// RatingEngine applies an agreed result to the ladder.
type RatingEngine interface {
	Apply(ctx context.Context, m *store.Match) (*ladder.Result, error)
}

// CharacterSource reports the character a player is currently checked in
// with, or empty when they are not in the pool.
type CharacterSource interface {
	CheckedInCharacter(ctx context.Context, username string) (string, error)
}

// Publisher fans an event out to every session a user holds.
type Publisher interface {
	Publish(username, inbox string, event any)
}

var (
	_ MatchStore   = (*store.Store)(nil)
	_ RatingEngine = (*ladder.Engine)(nil)
	_ Publisher    = (*push.Hub)(nil)
)

// Coordinator drives the lifecycle state machine.
type Coordinator struct {
	store     MatchStore
	engine    RatingEngine
	pool      CharacterSource
	publisher Publisher
	logger    *slog.Logger

	locks     *PlayerLocks
	reports   *PendingReports
	rematches *PendingRematches

	rematchWindow time.Duration
}

// NewCoordinator wires the state machine. A rematchWindow of zero disables
// expiry, leaving offers open until somebody responds.
func NewCoordinator(st MatchStore, engine RatingEngine, pool CharacterSource, publisher Publisher, rematchWindow time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:         st,
		engine:        engine,
		pool:          pool,
		publisher:     publisher,
		logger:        logger,
		locks:         NewPlayerLocks(),
		reports:       NewPendingReports(),
		rematches:     NewPendingRematches(),
		rematchWindow: rematchWindow,
	}
}

// Close stops every armed rematch timer. Open windows are abandoned without
// emitting expiry events.
func (c *Coordinator) Close() {
	c.rematches.Shutdown()
}

// Invite claims both players for a new interaction and notifies the target.
// It returns the invite id the challenger needs for cancellation and the
// target needs for acceptance.
func (c *Coordinator) Invite(ctx context.Context, challenger, target string) (string, error) {
	if err := requireHandles(challenger, target); err != nil {
		return "", err
	}
	if strings.EqualFold(challenger, target) {
		return "", reject(ErrValidation, "You cannot challenge yourself.")
	}

	inviteID := uuid.NewString()
	if busy, ok := c.locks.ClaimPair(challenger, target, inviteID); !ok {
		if strings.EqualFold(busy, challenger) {
			return "", reject(ErrBusy, "You already have a pending invite.")
		}
		return "", reject(ErrBusy, "Player is busy (likely sending you an invite!)")
	}
	c.logger.InfoContext(ctx, "invite sent",
		"challenger", challenger, "target", target, "invite_id", inviteID)

	c.publisher.Publish(target, push.InboxInvites, InviteEvent{
		InviteID: inviteID,
		From:     challenger,
		Status:   InvitePending,
	})
	return inviteID, nil
}

// Accept turns an open invite into an active match. Characters are read from
// the pool at this moment and frozen into the match row.
func (c *Coordinator) Accept(ctx context.Context, inviteID, challenger, opponent string) (*store.Match, error) {
	if err := requireHandles(challenger, opponent); err != nil {
		return nil, err
	}
	lockedID, ok := c.locks.Get(challenger)
	if !ok || lockedID != inviteID {
		return nil, reject(ErrInvalidState, "Invite expired or invalid")
	}

	m := &store.Match{
		ID:               uuid.NewString(),
		Player1Username:  challenger,
		Player2Username:  opponent,
		Player1ID:        c.lookupUserID(ctx, challenger),
		Player2ID:        c.lookupUserID(ctx, opponent),
		Player1Character: c.checkedInCharacter(ctx, challenger),
		Player2Character: c.checkedInCharacter(ctx, opponent),
		Status:           store.MatchActive,
	}
	if err := c.store.InsertMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}
	c.logger.InfoContext(ctx, "match started",
		"match_id", m.ID, "player1", challenger, "player2", opponent)

	ev := MatchUpdateEvent{
		MatchID:          ptr(m.ID),
		Status:           StatusStarted,
		Player1:          challenger,
		Player2:          opponent,
		Player1Character: ptr(m.Player1Character),
		Player2Character: ptr(m.Player2Character),
	}
	c.pushMatchUpdate(ev, challenger, opponent)
	return m, nil
}

// Decline releases both players from an open invite and tells the challenger.
// Only the named participants may decline. The release is lenient: declining
// an already-released invite is a no-op rather than an error.
func (c *Coordinator) Decline(ctx context.Context, caller, challenger, opponent string) error {
	if err := requireHandles(challenger, opponent); err != nil {
		return err
	}
	if !strings.EqualFold(caller, challenger) && !strings.EqualFold(caller, opponent) {
		return reject(ErrForbidden, "You are not part of this invite.")
	}
	c.locks.Release(challenger, opponent)
	c.logger.InfoContext(ctx, "invite declined",
		"challenger", challenger, "opponent", opponent, "declined_by", caller)

	ev := MatchUpdateEvent{
		Status:  StatusDeclined,
		Player1: challenger,
		Player2: opponent,
	}
	c.pushMatchUpdate(ev, challenger)
	return nil
}

// Cancel withdraws an invite before the opponent responds. The caller must
// hold the exact invite: a stale or foreign invite id is rejected without
// touching any lock.
func (c *Coordinator) Cancel(ctx context.Context, inviteID, challenger, opponent string) error {
	if err := requireHandles(challenger, opponent); err != nil {
		return err
	}
	lockedID, ok := c.locks.Get(challenger)
	if !ok || lockedID != inviteID {
		return reject(ErrBusy, "No matching invite to cancel.")
	}
	c.locks.Release(challenger, opponent)
	c.logger.InfoContext(ctx, "invite cancelled",
		"challenger", challenger, "opponent", opponent, "invite_id", inviteID)

	c.publisher.Publish(opponent, push.InboxInvites, InviteEvent{
		InviteID: inviteID,
		From:     challenger,
		Status:   InviteCancelled,
	})
	return nil
}

// Report records the first player's claim for a match outcome. The claim is
// insert-if-absent: a second report never overwrites the first, the late
// reporter is told to use confirm instead.
func (c *Coordinator) Report(ctx context.Context, matchID, reporter, claimedWinner string) error {
	if err := requireHandles(reporter, claimedWinner); err != nil {
		return err
	}
	m, err := c.store.MatchByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reject(ErrInvalidState, "No such match.")
		}
		return fmt.Errorf("load match %s: %w", matchID, err)
	}
	if m.Status != store.MatchActive {
		return reject(ErrInvalidState, "Match is already finalized.")
	}
	if !isParticipant(m, claimedWinner) {
		return reject(ErrValidation, "Claimed winner is not a participant of this match.")
	}

	report := PendingReport{ReporterUsername: reporter, ClaimedWinner: claimedWinner}
	if !c.reports.PutIfAbsent(matchID, report) {
		return reject(ErrBusy, "A result has already been reported for this match. Waiting for confirmation.")
	}
	c.logger.InfoContext(ctx, "result reported",
		"match_id", matchID, "reporter", reporter, "claimed_winner", claimedWinner)

	ev := MatchUpdateEvent{
		MatchID:          ptr(matchID),
		Status:           StatusAwaitingConfirmation,
		Player1:          m.Player1Username,
		Player2:          m.Player2Username,
		ReporterUsername: ptr(reporter),
		ClaimedWinner:    ptr(claimedWinner),
		Player1Character: ptr(m.Player1Character),
		Player2Character: ptr(m.Player2Character),
	}
	c.pushMatchUpdate(ev, m.Player1Username, m.Player2Username)
	return nil
}

// Confirm resolves a pending report with the second player's independent
// claim. Agreement finalizes the match and moves ratings; disagreement marks
// it DISPUTED and leaves ratings untouched. Either way a rematch window opens
// and both players learn the outcome.
//
// The pending report is consumed only after the outcome is durably persisted.
// If the rating engine or the store fails, the report stays in place and the
// confirmer can simply retry.
func (c *Coordinator) Confirm(ctx context.Context, matchID, confirmer, claimedWinner string) (string, error) {
	if err := requireHandles(confirmer, claimedWinner); err != nil {
		return "", err
	}
	pending, ok := c.reports.Get(matchID)
	if !ok {
		return "", reject(ErrNotFound, "No pending report for this match.")
	}
	if strings.EqualFold(pending.ReporterUsername, confirmer) {
		return "", reject(ErrBusy, "You already reported. Waiting for opponent.")
	}

	m, err := c.store.MatchByID(ctx, matchID)
	if err != nil {
		return "", fmt.Errorf("load match %s: %w", matchID, err)
	}
	if !isParticipant(m, claimedWinner) {
		return "", reject(ErrValidation, "Claimed winner is not a participant of this match.")
	}

	agreed := strings.EqualFold(pending.ClaimedWinner, claimedWinner)

	var result *ladder.Result
	if agreed {
		m.WinnerUsername = ptr(pending.ClaimedWinner)
		m.WinnerID = c.lookupUserID(ctx, pending.ClaimedWinner)
		m.Status = store.MatchCompleted
		result, err = c.engine.Apply(ctx, m)
		if err != nil {
			return "", fmt.Errorf("apply match result: %w", err)
		}
	} else {
		m.WinnerUsername = nil
		m.WinnerID = nil
		m.Status = store.MatchDisputed
	}
	if err := c.store.UpdateMatch(ctx, m); err != nil {
		return "", fmt.Errorf("persist match %s: %w", matchID, err)
	}

	c.reports.Remove(matchID)
	c.rematches.Offer(matchID, m.Player1Username, m.Player2Username, c.rematchWindow, c.expireRematch)

	c.logger.InfoContext(ctx, "match finalized",
		"match_id", matchID, "outcome", m.Status, "confirmer", confirmer)

	ev := MatchUpdateEvent{
		MatchID:          ptr(matchID),
		Status:           StatusRematchOffered,
		Player1:          m.Player1Username,
		Player2:          m.Player2Username,
		Result:           ptr(m.Status),
		Player1Character: ptr(m.Player1Character),
		Player2Character: ptr(m.Player2Character),
	}
	if agreed {
		ev.ClaimedWinner = ptr(pending.ClaimedWinner)
		ev.Player1EloDelta = ptr(result.Player1Delta)
		ev.Player2EloDelta = ptr(result.Player2Delta)
		ev.Player1NewElo = ptr(result.Player1EloAfter)
		ev.Player2NewElo = ptr(result.Player2EloAfter)
	}
	c.pushMatchUpdate(ev, m.Player1Username, m.Player2Username)
	return m.Status, nil
}

// RematchOutcome labels how a rematch response resolved.
type RematchOutcome string

const (
	RematchDeclined RematchOutcome = "DECLINED"
	RematchWaiting  RematchOutcome = "WAITING"
	RematchStarted  RematchOutcome = "STARTED"
)

// Rematch applies one player's answer to an open rematch offer. Both players
// accepting starts a new match with the same seats and characters; the locks
// carry straight over, so neither player ever passes through IDLE. The first
// decline wins: it closes the window and frees both players.
func (c *Coordinator) Rematch(ctx context.Context, matchID, responder string, accept bool) (RematchOutcome, *store.Match, error) {
	if err := requireHandles(responder); err != nil {
		return "", nil, err
	}

	outcome, p1, p2 := c.rematches.Respond(matchID, responder, accept)
	switch outcome {
	case respondNotFound:
		return "", nil, reject(ErrNotFound, "No pending rematch for this match.")

	case respondForbidden:
		return "", nil, reject(ErrForbidden, "You are not part of this match.")

	case respondDuplicate:
		return "", nil, reject(ErrBusy, "You already responded to this rematch.")

	case respondDeclined:
		c.locks.Release(p1, p2)
		c.logger.InfoContext(ctx, "rematch declined",
			"match_id", matchID, "declined_by", responder)
		ev := MatchUpdateEvent{
			MatchID: ptr(matchID),
			Status:  StatusRematchDeclined,
			Player1: p1,
			Player2: p2,
		}
		c.pushMatchUpdate(ev, p1, p2)
		return RematchDeclined, nil, nil

	case respondWaiting:
		ev := MatchUpdateEvent{
			MatchID: ptr(matchID),
			Status:  StatusRematchWaiting,
			Player1: p1,
			Player2: p2,
		}
		if prev, err := c.store.MatchByID(ctx, matchID); err == nil {
			ev.Player1Character = ptr(prev.Player1Character)
			ev.Player2Character = ptr(prev.Player2Character)
		} else {
			c.logger.WarnContext(ctx, "rematch waiting without characters",
				"match_id", matchID, "error", err)
		}
		c.pushMatchUpdate(ev, responder)
		return RematchWaiting, nil, nil

	case respondStarted:
		prev, err := c.store.MatchByID(ctx, matchID)
		if err != nil {
			c.locks.Release(p1, p2)
			return "", nil, fmt.Errorf("load previous match %s: %w", matchID, err)
		}
		next := &store.Match{
			ID:               uuid.NewString(),
			Player1Username:  p1,
			Player2Username:  p2,
			Player1ID:        c.lookupUserID(ctx, p1),
			Player2ID:        c.lookupUserID(ctx, p2),
			Player1Character: prev.Player1Character,
			Player2Character: prev.Player2Character,
			Status:           store.MatchActive,
		}
		if err := c.store.InsertMatch(ctx, next); err != nil {
			// The offer is already consumed; free the players rather than
			// strand them locked to a match that never existed.
			c.locks.Release(p1, p2)
			return "", nil, fmt.Errorf("insert rematch: %w", err)
		}
		c.logger.InfoContext(ctx, "rematch started",
			"previous_match_id", matchID, "match_id", next.ID)
		ev := MatchUpdateEvent{
			MatchID:          ptr(next.ID),
			Status:           StatusStarted,
			Player1:          p1,
			Player2:          p2,
			Player1Character: ptr(next.Player1Character),
			Player2Character: ptr(next.Player2Character),
		}
		c.pushMatchUpdate(ev, p1, p2)
		return RematchStarted, next, nil
	}
	return "", nil, fmt.Errorf("unhandled rematch outcome %d", outcome)
}

// expireRematch is the timer callback for an aged-out rematch window. It is
// a decline with nobody to blame: the offer is consumed, both players are
// freed, both are notified. Take settles the race against a concurrent
// response — whoever consumes the offer first wins.
func (c *Coordinator) expireRematch(matchID string) {
	p1, p2, ok := c.rematches.Take(matchID)
	if !ok {
		return
	}
	c.locks.Release(p1, p2)
	c.logger.Info("rematch window expired", "match_id", matchID)

	ev := MatchUpdateEvent{
		MatchID: ptr(matchID),
		Status:  StatusRematchDeclined,
		Player1: p1,
		Player2: p2,
	}
	c.pushMatchUpdate(ev, p1, p2)
}

// Locks exposes the player lock table for surfaces that only need presence
// checks.
func (c *Coordinator) Locks() *PlayerLocks { return c.locks }

func (c *Coordinator) pushMatchUpdate(ev MatchUpdateEvent, usernames ...string) {
	for _, username := range usernames {
		c.publisher.Publish(username, push.InboxMatchUpdates, ev)
	}
}

// lookupUserID resolves a handle to its account id. Players without accounts
// (dev-auth profiles, pre-registration seeds) resolve to nil, which the match
// row tolerates.
func (c *Coordinator) lookupUserID(ctx context.Context, username string) *string {
	id, err := c.store.UserIDByUsername(ctx, username)
	if err != nil {
		return nil
	}
	return &id
}

func (c *Coordinator) checkedInCharacter(ctx context.Context, username string) string {
	character, err := c.pool.CheckedInCharacter(ctx, username)
	if err != nil || character == "" {
		return characterUnknown
	}
	return character
}

func isParticipant(m *store.Match, handle string) bool {
	return strings.EqualFold(handle, m.Player1Username) || strings.EqualFold(handle, m.Player2Username)
}

func requireHandles(handles ...string) error {
	for _, h := range handles {
		if strings.TrimSpace(h) == "" {
			return reject(ErrValidation, "Username must not be blank.")
		}
	}
	return nil
}
