package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLockHeld           = errors.New("lock already held")
	ErrNotInitialized     = errors.New("auction not initialized")
	ErrAlreadyInitialized = errors.New("auction already initialized")

	// Ledger adapter failures. They propagate through auction operations
	// unchanged.
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrTransferUnauthorized = errors.New("transfer authority does not own source account")
	ErrAssetMismatch        = errors.New("token account asset mismatch")
	ErrDecimalsMismatch     = errors.New("transfer decimals mismatch")
	ErrAccountMismatch      = errors.New("token account constraint violated")
)

// AuctionError is a rejection raised by an auction operation. Code is stable
// and safe to expose to clients.
type AuctionError struct {
	Code string
	Msg  string
}

func (e *AuctionError) Error() string {
	return e.Msg
}

var (
	ErrOnlyAgent           = &AuctionError{Code: "OnlyAgent", Msg: "only the agent can perform this action"}
	ErrBidTooLow           = &AuctionError{Code: "BidTooLow", Msg: "bid below minimum"}
	ErrBidNotActive        = &AuctionError{Code: "BidNotActive", Msg: "bid is not active"}
	ErrAmountBelowMinimum  = &AuctionError{Code: "AmountBelowMinimum", Msg: "bid amount would fall below minimum"}
	ErrInsufficientEscrow  = &AuctionError{Code: "InsufficientEscrow", Msg: "insufficient escrow balance"}
	ErrWrongBidder         = &AuctionError{Code: "WrongBidder", Msg: "bid does not belong to this bidder"}
	ErrBidStillActive      = &AuctionError{Code: "BidStillActive", Msg: "bid is still active, withdraw first or wait to win"}
	ErrArithmeticOverflow  = &AuctionError{Code: "ArithmeticOverflow", Msg: "arithmetic overflow or underflow"}
	ErrInvalidMintDecimals = &AuctionError{Code: "InvalidMintDecimals", Msg: "invalid mint decimals"}
	ErrInvalidAmountChange = &AuctionError{Code: "InvalidAmountChange", Msg: "invalid amount change"}
)

// ErrorCode returns the AuctionError code carried anywhere in err's chain,
// or "" if there is none.
func ErrorCode(err error) string {
	var ae *AuctionError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
