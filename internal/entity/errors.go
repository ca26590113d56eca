package entity

import (
	"errors"
	"fmt"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrDraftAlreadyExists = errors.New("contact already has a live email")
	ErrNotFound           = errors.New("record not found")
	// ErrStatusConflict means the row was no longer in the expected status.
	ErrStatusConflict = errors.New("status changed concurrently")
)

type IllegalTransitionError struct {
	Stage Stage
	From  Status
	To    Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s in stage %s", e.From, e.To, e.Stage)
}

func IsIllegalTransition(err error) bool {
	var t *IllegalTransitionError
	return errors.As(err, &t)
}
