package shared

import "fmt"

// Sentinel errors for the failure kinds a provider adapter or the store can
// surface. Callers match with errors.Is; call sites wrap with fmt.Errorf
// ("...: %w", ErrX) so the sentinel survives alongside context.
var (
	// ErrTransport covers HTTP transport, DNS, TLS, and timeout failures
	// that survive the retrying RoundTripper's budget.
	ErrTransport = fmt.Errorf("transport error")

	// ErrDecode covers JSON deserialization mismatches, encoding failures,
	// and malformed share text.
	ErrDecode = fmt.Errorf("decode error")

	// ErrProvider covers adapter-recognised logical failures: no quality
	// available, empty playlist id, a missing album id where one is
	// expected, an unrecognised share link, etc.
	ErrProvider = fmt.Errorf("provider error")

	// ErrNotFound covers an entity absent from the database or from a
	// provider response.
	ErrNotFound = fmt.Errorf("not found")

	// ErrDbNotInitialised is returned by any store operation invoked
	// before SetDB.
	ErrDbNotInitialised = fmt.Errorf("database not initialised")

	// ErrDbConflict covers a unique or foreign-key conflict that could not
	// be reconciled to an existing row.
	ErrDbConflict = fmt.Errorf("database conflict")

	// ErrDbError covers any other database failure.
	ErrDbError = fmt.Errorf("database error")

	// ErrInvalidInput covers caller-supplied arguments failing basic
	// validation (empty query, page < 1, unknown server, etc).
	ErrInvalidInput = fmt.Errorf("invalid input")
)
