package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrStorage        = errors.New("local storage failure")
	ErrTemporary      = errors.New("temporary failure")
	ErrInvalidInput   = errors.New("invalid input")
	ErrOffline        = errors.New("offline")
	ErrSyncInProgress = errors.New("sync already in progress")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
