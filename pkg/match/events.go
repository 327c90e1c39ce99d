package match

// Statuses carried by MatchUpdateEvent, in lifecycle order.
const (
	StatusStarted              = "STARTED"
	StatusAwaitingConfirmation = "AWAITING_CONFIRMATION"
	StatusRematchOffered       = "REMATCH_OFFERED"
	StatusRematchWaiting       = "REMATCH_WAITING"
	StatusRematchDeclined      = "REMATCH_DECLINED"
	StatusDeclined             = "DECLINED"
)

// Statuses carried by InviteEvent.
const (
	InvitePending   = "PENDING"
	InviteCancelled = "CANCELLED"
)

// MatchUpdateEvent is pushed to the match-updates inbox on every lifecycle
// transition. Fields that do not apply to a given status are explicit nulls
// rather than omitted, so clients can switch on status without probing for
// key presence.
//
// claimedWinner does double duty: during AWAITING_CONFIRMATION it is the
// first reporter's claim; on REMATCH_OFFERED after an agreed result it is the
// final winner (null on dispute).
type MatchUpdateEvent struct {
	MatchID          *string `json:"matchId"`
	Status           string  `json:"status"`
	Player1          string  `json:"player1"`
	Player2          string  `json:"player2"`
	ReporterUsername *string `json:"reporterUsername"`
	ClaimedWinner    *string `json:"claimedWinner"`
	Result           *string `json:"result"`
	Player1EloDelta  *int    `json:"player1EloDelta"`
	Player2EloDelta  *int    `json:"player2EloDelta"`
	Player1NewElo    *int    `json:"player1NewElo"`
	Player2NewElo    *int    `json:"player2NewElo"`
	Player1Character *string `json:"player1Character"`
	Player2Character *string `json:"player2Character"`
}

// InviteEvent is pushed to the invites inbox of the invited player.
type InviteEvent struct {
	InviteID string `json:"inviteId"`
	From     string `json:"from"`
	Status   string `json:"status"`
}

// ptr returns a pointer to v, for the envelopes' nullable fields.
func ptr[T any](v T) *T { return &v }
