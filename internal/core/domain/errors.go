package domain

import "errors"

var (
	ErrInvalidQuantity          = errors.New("quantity must be at least 1")
	ErrInvalidRequester         = errors.New("requester identity is required")
	ErrUnauthorized             = errors.New("missing or invalid credential")
	ErrOfferingNotFound         = errors.New("offering not found")
	ErrInsufficientAvailability = errors.New("insufficient availability")
	ErrVersionConflict          = errors.New("optimistic lock failed: offering was modified by another transaction")
	ErrContention               = errors.New("offering is under heavy contention, try again")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrForbidden                = errors.New("reservation belongs to another requester")
	ErrAlreadyCancelled         = errors.New("reservation is already cancelled")
	ErrAlreadyExists            = errors.New("already exists")
	ErrEventNotFound            = errors.New("event not found")
	ErrEventInProgress          = errors.New("event is being processed by another worker")
	ErrMalformedEvent           = errors.New("malformed event")
	ErrTransient                = errors.New("temporary failure, try again")
)

type ErrorKind string

const (
	KindInsufficientAvailability ErrorKind = "InsufficientAvailability"
	KindOfferingNotFound         ErrorKind = "OfferingNotFound"
	KindInvalidQuantity          ErrorKind = "InvalidQuantity"
	KindReservationNotFound      ErrorKind = "ReservationNotFound"
	KindForbidden                ErrorKind = "Forbidden"
	KindAlreadyCancelled         ErrorKind = "AlreadyCancelled"
	KindUnauthorized             ErrorKind = "Unauthorized"
	KindInvalidRequest           ErrorKind = "InvalidRequest"
	KindTransient                ErrorKind = "Transient"
)

// KindOf maps an error onto the kinds reported to callers. Anything
// unrecognised is reported as transient.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInsufficientAvailability):
		return KindInsufficientAvailability
	case errors.Is(err, ErrOfferingNotFound):
		return KindOfferingNotFound
	case errors.Is(err, ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, ErrReservationNotFound):
		return KindReservationNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrAlreadyCancelled):
		return KindAlreadyCancelled
	case errors.Is(err, ErrInvalidRequester), errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindTransient
	}
}

// IsPermanent reports errors that redelivery cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedEvent)
}
