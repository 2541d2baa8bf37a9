package valueobjects

import "strings"

// TransactionStatus is the router's view of a transaction.
type TransactionStatus string

const (
	TransactionStatusSuccess    TransactionStatus = "Success"
	TransactionStatusAuthorized TransactionStatus = "Authorized"
	TransactionStatusPending    TransactionStatus = "Pending"
	TransactionStatusDeclined   TransactionStatus = "Declined"
	TransactionStatusFailed     TransactionStatus = "Failed"
)

// DeclineHard marks a decline that must not be retried or resumed.
const DeclineHard = "Hard"

// IsApproved reports whether the transaction was captured or authorized.
func (s TransactionStatus) IsApproved() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusAuthorized
}

func (s TransactionStatus) IsPending() bool {
	return s == TransactionStatusPending
}

// IsTerminal reports whether the router will not move the transaction further.
func (s TransactionStatus) IsTerminal() bool {
	return s.IsApproved() || s.IsPending()
}

// IsDeclineHard compares an error_type value case-insensitively.
func IsDeclineHard(errorType string) bool {
	return strings.EqualFold(errorType, DeclineHard)
}

func (s TransactionStatus) String() string {
	return string(s)
}
