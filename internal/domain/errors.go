package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	ConfigurationError ErrorKind = iota
	CapabilityError
	NetworkError
	ExchangeError
	RateLimitError
	InsufficientFundsError
	InvalidOrderError
	MissingDataError
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "Configuration error"
	case CapabilityError:
		return "Capability error"
	case NetworkError:
		return "Network error"
	case ExchangeError:
		return "Exchange error"
	case RateLimitError:
		return "Rate limit"
	case InsufficientFundsError:
		return "Insufficient funds"
	case InvalidOrderError:
		return "Invalid order"
	case MissingDataError:
		return "Missing data"
	default:
		return "Unknown error"
	}
}

// Error is the error type shared by venues, adapters and the aggregator.
type Error struct {
	Kind     ErrorKind
	Exchange string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": "
	if e.Exchange != "" {
		msg += "[" + e.Exchange + "] "
	}
	msg += e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether any error in err's chain is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func NewConfigurationError(exchange string, message string, err error) *Error {
	return &Error{Kind: ConfigurationError, Exchange: exchange, Message: message, Err: err}
}

func NewCapabilityError(exchange string, capability Capability) *Error {
	return &Error{Kind: CapabilityError, Exchange: exchange, Message: fmt.Sprintf("%s does not support %s", exchange, capability)}
}

func NewMissingDataError(exchange string, message string) *Error {
	return &Error{Kind: MissingDataError, Exchange: exchange, Message: message}
}

// Wrap builds an *Error of kind around a venue error.
func Wrap(kind ErrorKind, exchange string, message string, err error) *Error {
	return &Error{Kind: kind, Exchange: exchange, Message: message, Err: err}
}
