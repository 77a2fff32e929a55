// Package fault classifies request failures into the error kinds surfaced by
// the CLI (exit codes) and the HTTP API (status codes).
package fault

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind identifies a class of failure.
type Kind int

// Failure kinds.
const (
	Unknown Kind = iota
	DataSource
	Index
	Join
	Configuration
)

func (k Kind) String() string {
	switch k {
	case DataSource:
		return "DataSourceError"
	case Index:
		return "IndexError"
	case Join:
		return "JoinError"
	case Configuration:
		return "ConfigurationError"
	default:
		return "Error"
	}
}

// Error is a classified failure. IDs carries the cell identifiers involved,
// e.g. the duplicate keys behind a JoinError.
type Error struct {
	Kind Kind
	Err  error
	IDs  []string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.IDs) > 0 {
		msg += " [" + strings.Join(e.IDs, ", ") + "]"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, msg string) *Error {
	if err == nil {
		err = eris.New(msg)
	} else if msg != "" {
		err = eris.Wrap(err, msg)
	}
	return &Error{Kind: kind, Err: err}
}

// NewDataSource reports an unreadable or malformed input source.
func NewDataSource(err error, msg string) *Error { return newError(DataSource, err, msg) }

// NewIndex reports a matrix file collection that cannot be enumerated.
func NewIndex(err error, msg string) *Error { return newError(Index, err, msg) }

// NewConfiguration reports a bad caller-supplied mode, metric, scheme or setting.
func NewConfiguration(err error, msg string) *Error { return newError(Configuration, err, msg) }

// NewJoin reports join key violations for the given identifiers.
func NewJoin(msg string, ids []string) *Error {
	e := newError(Join, nil, msg)
	e.IDs = ids
	return e
}

// Configurationf is a formatted NewConfiguration without a cause.
func Configurationf(format string, args ...any) *Error {
	return &Error{Kind: Configuration, Err: eris.Errorf(format, args...)}
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case DataSource:
		return 2
	case Index:
		return 3
	case Join:
		return 4
	case Configuration:
		return 5
	default:
		return 1
	}
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Configuration:
		return http.StatusBadRequest
	case Index:
		return http.StatusNotFound
	case Join:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
