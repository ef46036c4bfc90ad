package service

import "fmt"

type InvalidRequestError struct{ Message string }

func (e *InvalidRequestError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

// PersistenceError wraps a store failure. Only Op is safe to show to clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

var errConversationNotFound = &NotFoundError{Message: "Chat not found"}
