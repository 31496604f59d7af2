package receipt

import "time"

// Status is the persisted outcome of processing one inbound email.
type Status string

const (
	ReceiptSuccess Status = "SUCCESS"
	ReceiptFailed  Status = "FAILED"
)

// Receipt is the persisted record for one inbound bank-notification email.
// EmailID is the idempotency key: exactly one record exists per email,
// whether or not the attachment parsed. PayoutID is write-once.
type Receipt struct {
	ID       string
	EmailID  string
	FileHash string
	FilePath string

	Amount       int64
	Status       Status
	TransferKind TransferKind // empty when parsing failed

	Sender              string
	RecipientPhone      string
	RecipientName       string
	RecipientBank       string
	RecipientCardLast4  string
	RecipientCardMasked string
	Commission          *int64

	ParseFailReason string // set only when Status == ReceiptFailed

	TransactionDate time.Time
	PayoutID        string
	IsProcessed     bool
	CreatedAt       time.Time
}

// Matched reports whether the receipt has been linked to a payout.
func (r *Receipt) Matched() bool {
	return r != nil && r.PayoutID != ""
}

// Matchable reports whether the receipt is eligible for payout matching.
func (r *Receipt) Matchable() bool {
	return r != nil && r.Status == ReceiptSuccess && r.Amount > 0 && r.PayoutID == ""
}

// FromParsed projects a ParsedReceipt onto a persisted Receipt.
// The variant determines which recipient fields are populated; fields
// belonging to other variants stay zero.
func FromParsed(id, emailID, fileHash, filePath string, parsed ParsedReceipt, now time.Time) *Receipt {
	common := parsed.Common()
	rec := &Receipt{
		ID:              id,
		EmailID:         emailID,
		FileHash:        fileHash,
		FilePath:        filePath,
		Amount:          common.Amount,
		Status:          ReceiptSuccess,
		TransferKind:    parsed.Kind(),
		Sender:          common.Sender,
		Commission:      common.Commission,
		TransactionDate: common.Timestamp,
		CreatedAt:       now,
	}

	switch v := parsed.(type) {
	case ByPhone:
		rec.RecipientPhone = v.RecipientPhone
		rec.RecipientName = v.RecipientName
		rec.RecipientBank = v.RecipientBank
	case ToClient:
		rec.RecipientName = v.RecipientName
		rec.RecipientCardLast4 = v.RecipientCardLast4
	case ToCard:
		rec.RecipientCardMasked = v.RecipientCardMasked
		rec.RecipientCardLast4 = last4Digits(v.RecipientCardMasked)
	}
	return rec
}

// FromFailedParse builds an auditable FAILED record for an attachment
// that could not be parsed.
func FromFailedParse(id, emailID, fileHash, filePath string, parseErr *ParseError, now time.Time) *Receipt {
	rec := &Receipt{
		ID:        id,
		EmailID:   emailID,
		FileHash:  fileHash,
		FilePath:  filePath,
		Status:    ReceiptFailed,
		CreatedAt: now,
	}
	if parseErr != nil {
		rec.ParseFailReason = string(parseErr.Reason)
	}
	return rec
}

func last4Digits(masked string) string {
	digits := make([]byte, 0, len(masked))
	for i := 0; i < len(masked); i++ {
		if masked[i] >= '0' && masked[i] <= '9' {
			digits = append(digits, masked[i])
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}
