package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// asConflict turns errors caused by a competing transaction into sentinel, keeping
// everything else as is
func asConflict(err error, sentinel error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case pgerrcode.SerializationFailure, pgerrcode.UniqueViolation, pgerrcode.DeadlockDetected:
		return fmt.Errorf("%w: %s", sentinel, pqErr.Message)
	default:
		return err
	}
}
