package recordstore

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags the cause of a failed operation.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindWriteConflict
	KindConnection
	KindInvalidInput
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindWriteConflict:
		return "write_conflict"
	case KindConnection:
		return "connection"
	case KindInvalidInput:
		return "invalid_input"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrNotFound      = errors.New("record not found")
	ErrWriteConflict = errors.New("write conflict")
	ErrConnection    = errors.New("connection error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("configuration error")
)

var kindSentinels = map[Kind]error{
	KindNotFound:      ErrNotFound,
	KindWriteConflict: ErrWriteConflict,
	KindConnection:    ErrConnection,
	KindInvalidInput:  ErrInvalidInput,
	KindConfiguration: ErrConfiguration,
}

// Error is the failure of one record operation.
type Error struct {
	Op    string
	Table string
	Key   string
	Kind  Kind
	Err   error
}

// NewError tags err with op, table, key and kind.
func NewError(op, table, key string, kind Kind, err error) *Error {
	return &Error{Op: op, Table: table, Key: key, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("recordstore: ")
	b.WriteString(e.Op)
	if e.Table != "" {
		b.WriteString(" ")
		b.WriteString(e.Table)
		if e.Key != "" {
			b.WriteString("/")
			b.WriteString(e.Key)
		}
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the kind carried by err. Bare sentinels map to their kind;
// anything else is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var recErr *Error
	if errors.As(err, &recErr) {
		return recErr.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// Status is the coarse outcome reported to the harness.
type Status int

const (
	StatusOK    Status = 0
	StatusError Status = 1
)

// StatusOf collapses err into the coarse success/failure view.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	return StatusError
}

// Outcome labels err for logs and metrics: "ok" or the kind name.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
