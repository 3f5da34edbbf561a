// Package services defines the business logic of the relay: context
// resolution over the two-tier store and the per-message orchestration that
// calls the completion backend. This file centralizes the service-level error
// taxonomy so that callers can branch on it consistently.
//
// Translation into user-facing replies or HTTP status codes is performed by
// the RelayService (for chat transports) and the handler layer (for HTTP).
package services

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnauthorized is returned when a user outside the allowlist invokes a
	// context-mutating operation. No state is changed.
	ErrUnauthorized = errors.New("user is not authorized")

	// ErrEmptyMessage is returned for messages that are blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrUnknownCommand is returned by Dispatch for an unrecognized /command.
	ErrUnknownCommand = errors.New("unknown command")
)

// Stage names a step of a resolution; used in logs and wrapped errors.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageComplete Stage = "complete"
	StageDeliver  Stage = "deliver"
	StagePersist  Stage = "persist"
	StagePrime    Stage = "prime"
	StagePurge    Stage = "purge"
)

// BackendError wraps a failure of the completion backend.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("completion backend: %v", e.Err) }

func (e *BackendError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the durable context store at a given stage.
type StorageError struct {
	Stage Stage
	Err   error
}

func (e *StorageError) Error() string { return fmt.Sprintf("context store (%s): %v", e.Stage, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }
