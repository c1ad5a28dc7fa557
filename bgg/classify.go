package bgg

// OutcomeClass buckets an HTTP status code into the action the fetch retry
// loop should take. Classification happens in exactly one place so the loop
// can switch over the enum instead of chaining status comparisons.
type OutcomeClass int

const (
	// ClassSuccess indicates the collection body is ready (200).
	ClassSuccess OutcomeClass = iota
	// ClassPending indicates BGG accepted the request but is still assembling
	// the collection (202); retry after a short fixed delay.
	ClassPending
	// ClassRateLimited indicates the request was throttled (429); honor
	// Retry-After when present.
	ClassRateLimited
	// ClassAuthError indicates the collection is not visible to us (401/403).
	// Terminal: retrying cannot help without credentials.
	ClassAuthError
	// ClassServerError indicates a transient upstream failure (5xx).
	ClassServerError
	// ClassOther covers any remaining status; terminal.
	ClassOther
)

// String returns a human-readable outcome class name for logging.
func (c OutcomeClass) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassPending:
		return "pending"
	case ClassRateLimited:
		return "rate_limited"
	case ClassAuthError:
		return "auth_error"
	case ClassServerError:
		return "server_error"
	case ClassOther:
		return "other"
	default:
		return "unknown"
	}
}

// Classify maps an HTTP status code to its OutcomeClass.
func Classify(status int) OutcomeClass {
	switch {
	case status == 200:
		return ClassSuccess
	case status == 202:
		return ClassPending
	case status == 429:
		return ClassRateLimited
	case status == 401 || status == 403:
		return ClassAuthError
	case status >= 500 && status <= 599:
		return ClassServerError
	default:
		return ClassOther
	}
}
