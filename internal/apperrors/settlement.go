package apperrors

import "errors"

var (
	// ErrCollectionFailed is a declared terminal failure of a funding strategy. The funding
	// transaction goes to review and is never retried automatically.
	ErrCollectionFailed = errors.New("collection failed")

	// ErrSendingFailed is the payout counterpart of ErrCollectionFailed.
	ErrSendingFailed = errors.New("sending failed")

	// ErrPredictionMismatch means the predicted contribution differs from what the member was shown.
	ErrPredictionMismatch = errors.New("could not complete charge, please retry")

	// ErrUnfundedRemainder means a charge left an amount uncovered without a funding transaction.
	ErrUnfundedRemainder = errors.New("charge remainder has no funding transaction")
)
