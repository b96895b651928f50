package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrOperationNotPermitted = errors.New("operation not permitted")
	ErrUnauthorized          = errors.New("unauthorized")
)

// InventoryError carries a user facing message together with one of the error kinds above.
type InventoryError struct {
	Kind    error
	Message string
}

func (e *InventoryError) Error() string { return e.Message }

func (e *InventoryError) Unwrap() error { return e.Kind }

func NotFoundf(format string, args ...any) error {
	return &InventoryError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgumentf(format string, args ...any) error {
	return &InventoryError{Kind: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func NotPermittedf(format string, args ...any) error {
	return &InventoryError{Kind: ErrOperationNotPermitted, Message: fmt.Sprintf(format, args...)}
}

// NotPermitted re-labels err as an operation that was not permitted, keeping its message.
func NotPermitted(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOperationNotPermitted) {
		return err
	}
	return &InventoryError{Kind: ErrOperationNotPermitted, Message: err.Error()}
}
