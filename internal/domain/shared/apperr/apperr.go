package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict_retryable"
	KindPartialRelease   Kind = "partial_release"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflictRetryable = &Error{Kind: KindConflict}
	ErrPartialRelease    = &Error{Kind: KindPartialRelease}
)

// Error carries the context a caller needs to build a user-facing message.
type Error struct {
	Kind      Kind
	Op        string
	RoomID    string
	BookingID string
	Date      time.Time
	Requested int
	Available int
	Msg       string
	Failures  []ReleaseFailure
	Err       error
}

// ReleaseFailure names one assignment that could not be released on cancel.
type ReleaseFailure struct {
	RoomID string `json:"room_id"`
	Error  string `json:"error"`
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Kind))
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.RoomID != "" {
		fmt.Fprintf(&sb, " room=%s", e.RoomID)
	}
	if e.BookingID != "" {
		fmt.Fprintf(&sb, " booking=%s", e.BookingID)
	}
	if !e.Date.IsZero() {
		fmt.Fprintf(&sb, " date=%s", e.Date.Format(time.DateOnly))
	}
	if e.Kind == KindCapacityExceeded && (e.Requested > 0 || e.Available > 0) {
		fmt.Fprintf(&sb, " requested=%d available=%d", e.Requested, e.Available)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Validation(roomID, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, RoomID: roomID, Msg: fmt.Sprintf(format, args...)}
}

func CapacityExceeded(roomID string, date time.Time, requested, available int) *Error {
	return &Error{
		Kind:      KindCapacityExceeded,
		RoomID:    roomID,
		Date:      date,
		Requested: requested,
		Available: available,
		Msg:       "room is no longer available",
	}
}

func NotFound(what, id string) *Error {
	e := &Error{Kind: KindNotFound, Msg: what + " not found"}
	switch what {
	case "room":
		e.RoomID = id
	case "booking":
		e.BookingID = id
	default:
		e.Msg = fmt.Sprintf("%s %s not found", what, id)
	}
	return e
}

func Conflict(op string, err error) *Error {
	return &Error{Kind: KindConflict, Op: op, Msg: "concurrent update, retry later", Err: err}
}

func PartialRelease(bookingID string, failures []ReleaseFailure, err error) *Error {
	return &Error{
		Kind:      KindPartialRelease,
		BookingID: bookingID,
		Msg:       fmt.Sprintf("%d assignment(s) could not be released", len(failures)),
		Failures:  failures,
		Err:       err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether err is an internal conflict worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflictRetryable)
}

// WithOp stamps an operation name on err when it is an *Error without one.
func WithOp(op string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		e.Op = op
	}
	return err
}
