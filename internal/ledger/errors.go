package ledger

import "errors"

var (
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidPrice         = errors.New("price must be positive")
	ErrNoPosition           = errors.New("no position in instrument")
	ErrInsufficientQuantity = errors.New("sell quantity exceeds holding")
	ErrUnknownInstrument    = errors.New("instrument is not tradable")
)

// Code maps a ledger error to a stable machine-readable identifier.
// Anything else is reported as "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrNoPosition):
		return "no_position"
	case errors.Is(err, ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, ErrUnknownInstrument):
		return "unknown_instrument"
	default:
		return "internal"
	}
}
