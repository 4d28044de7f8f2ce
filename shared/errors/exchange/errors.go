package exchange

import "errors"

var (
	ErrTransient         = errors.New("transient exchange error")
	ErrRejected          = errors.New("order rejected by exchange")
	ErrUnsupportedClient = errors.New("unsupported client implementation")
	ErrNoCredentials     = errors.New("no exchange credentials configured")
	ErrInvalidPrice      = errors.New("invalid market price")
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrEmptyOrderbook    = errors.New("order book is empty")
)
