package imapclient

import (
	"errors"
	"fmt"
)

// ErrKind partitions adapter failures the way the orchestrator needs them:
// connection-level kinds are fatal to a sync attempt, folder kinds skip one
// folder, parse kinds skip one message.
type ErrKind string

const (
	KindConnection ErrKind = "connection"
	KindAuth       ErrKind = "auth"
	KindTimeout    ErrKind = "timeout"
	KindFolder     ErrKind = "folder"
	KindParse      ErrKind = "parse"
)

type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("imap %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrKind of err, or "" if err is not an adapter error.
func KindOf(err error) ErrKind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// IsConnectionError reports whether err is fatal to the whole sync attempt
// (dial, TLS, auth or timeout failure).
func IsConnectionError(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindAuth, KindTimeout:
		return true
	}
	return false
}
