package receipt

import "errors"

// ParseReason classifies why a receipt text could not be parsed.
type ParseReason string

const (
	ReasonStatusNotSuccess    ParseReason = "status_not_success"
	ReasonDateTimeNotFound    ParseReason = "datetime_not_found"
	ReasonAmountNotFound      ParseReason = "amount_not_found"
	ReasonSenderNotFound      ParseReason = "sender_not_found"
	ReasonUnknownTransferType ParseReason = "unknown_transfer_type"
	ReasonPhoneNotFound       ParseReason = "recipient_phone_not_found"
	ReasonRecipientNotFound   ParseReason = "recipient_name_not_found"
	ReasonCardNotFound        ParseReason = "recipient_card_not_found"

	// ReasonExtractionFailed marks attachments whose text could not be
	// pulled out of the PDF at all.
	ReasonExtractionFailed ParseReason = "text_extraction_failed"
)

// ParseError reports a failed parse with a machine-readable reason.
type ParseError struct {
	Reason ParseReason
}

func (e *ParseError) Error() string {
	return "receipt parse: " + string(e.Reason)
}

// NewParseError constructs a ParseError for the given reason.
func NewParseError(reason ParseReason) *ParseError {
	return &ParseError{Reason: reason}
}

// AsParseError unwraps err into a ParseError if it is one.
func AsParseError(err error) (*ParseError, bool) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr, true
	}
	return nil, false
}

var (
	// ErrDuplicateEmail is returned when a receipt with the same email id exists.
	ErrDuplicateEmail = errors.New("receipt: duplicate email id")
	// ErrAlreadyLinked is returned when a receipt already has a payout linked.
	ErrAlreadyLinked = errors.New("receipt: payout already linked")
	// ErrNotFound is returned when no receipt matches the lookup.
	ErrNotFound = errors.New("receipt: not found")
	// ErrNilReceipt guards repository calls.
	ErrNilReceipt = errors.New("receipt: nil receipt")
)
