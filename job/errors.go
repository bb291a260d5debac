package job

import "errors"

var (
	// ErrInvalidSpec signals a malformed posting or bid (e.g. price <= 0).
	ErrInvalidSpec = errors.New("job: invalid spec")
	// ErrJobNotFound signals no job row exists for the identifier.
	ErrJobNotFound = errors.New("job: not found")
	// ErrEntryNotFound signals no entry row exists for the identifier.
	ErrEntryNotFound = errors.New("job: entry not found")
	// ErrJobNotOpen signals an operation that requires an open job.
	ErrJobNotOpen = errors.New("job: not open")
	// ErrAlreadyHired signals a hire attempt after an entry was already hired.
	ErrAlreadyHired = errors.New("job: already hired")
	// ErrNotHired signals an operation called before the job reached the
	// required point in its lifecycle.
	ErrNotHired = errors.New("job: not hired")
	// ErrEntryUnavailable signals a hire or withdraw against an entry that is
	// no longer submitted.
	ErrEntryUnavailable = errors.New("job: entry unavailable")
	// ErrDuplicateEntry signals a second bid by the same seller on one job.
	ErrDuplicateEntry = errors.New("job: entry already submitted for this job")
	// ErrRoleNotPermitted signals the actor may not perform the operation.
	ErrRoleNotPermitted = errors.New("job: role not permitted")
	// ErrRevisionLimitExceeded signals the revision-round budget is spent; the
	// buyer must accept the delivery or open a dispute.
	ErrRevisionLimitExceeded = errors.New("job: revision limit exceeded")
	// ErrNoPendingProposal signals acceptance of a paid revision that was
	// never proposed or was already consumed.
	ErrNoPendingProposal = errors.New("job: no pending paid-revision proposal")
	// ErrJobFrozen signals the job is disputed or terminal and rejects normal
	// transitions.
	ErrJobFrozen = errors.New("job: frozen")
	// ErrInvalidTransition signals an operation that is not available from the
	// job's current status.
	ErrInvalidTransition = errors.New("job: operation not allowed in current status")
)
