package match

import "errors"

// Error kinds for lifecycle rejections. Handlers map these to status codes;
// the message on the concrete error is the user-facing text.
var (
	// ErrValidation marks malformed input: blank handles, self-invites, a
	// claimed winner who is not in the match.
	ErrValidation = errors.New("invalid request")

	// ErrBusy marks claims lost to an existing engagement: a locked player,
	// a second report, a duplicate rematch response.
	ErrBusy = errors.New("player busy")

	// ErrInvalidState marks operations against a record in the wrong state:
	// stale invites, reports on finalized matches.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound marks missing coordination records: no pending report to
	// confirm, no open rematch window.
	ErrNotFound = errors.New("no pending record")

	// ErrForbidden marks callers acting on interactions they are not part of.
	ErrForbidden = errors.New("not a participant")
)

// rejection carries a user-facing message while unwrapping to its kind, so
// errors.Is selects the status code and Error() is the response body.
type rejection struct {
	kind error
	msg  string
}

func (r *rejection) Error() string { return r.msg }
func (r *rejection) Unwrap() error { return r.kind }

func reject(kind error, msg string) error {
	return &rejection{kind: kind, msg: msg}
}
