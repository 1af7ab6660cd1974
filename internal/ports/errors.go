package ports

import "errors"

// Standard application-level errors.
// Adapters and core packages wrap their failures with these so callers can use errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exit plan errors
	ErrZeroRiskUnit = errors.New("risk unit is zero: stop equals entry")
	ErrInvalidEntry = errors.New("entry price must be positive")
	ErrInvalidSide  = errors.New("side must be LONG or SHORT")

	// Order validation errors (reported as rejections, never thrown)
	ErrInvalidOrder      = errors.New("invalid order request")
	ErrInvalidQuantity   = errors.New("order quantity must be positive")
	ErrMissingSymbol     = errors.New("order symbol is required")
	ErrMissingLimitPrice = errors.New("limit order requires a price")
	ErrMissingStopPrice  = errors.New("stop-market order requires a stop price")
	ErrMissingBracket    = errors.New("oco order requires both take-profit and stop-loss")
	ErrUnknownOrderType  = errors.New("unknown order type")
	ErrUnknownOrderSide  = errors.New("unknown order side")

	// Ledger errors
	ErrInvalidFill = errors.New("invalid fill")

	// Exchange Specific Errors (historical data fetcher)
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
