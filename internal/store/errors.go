package store

import (
	"strings"

	"github.com/quietridge/analystd/internal/storeerr"
)

// classify wraps a raw driver error as a TransientPersistenceError (locked
// database, connection loss) or a PermanentPersistenceError (constraint
// violation). Returns nil if err is nil.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "locked"),
		strings.Contains(msg, "busy"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "timeout"):
		return storeerr.NewTransient(op, err)
	case strings.Contains(msg, "constraint"),
		strings.Contains(msg, "unique"),
		strings.Contains(msg, "not null"),
		strings.Contains(msg, "foreign key"):
		return storeerr.NewPermanent(op, err)
	default:
		return storeerr.NewTransient(op, err)
	}
}
