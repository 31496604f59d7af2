package receipt

import "time"

// TransferKind discriminates the parsed receipt variants.
type TransferKind string

const (
	TransferByPhone  TransferKind = "BY_PHONE"
	TransferToClient TransferKind = "TO_CLIENT"
	TransferToCard   TransferKind = "TO_CARD"
)

// ParsedStatus is the outcome printed on the receipt itself.
// Only StatusSuccess is ever constructed; anything else fails parsing.
type ParsedStatus string

const StatusSuccess ParsedStatus = "SUCCESS"

// Details holds the fields shared by every receipt variant.
type Details struct {
	Timestamp  time.Time
	Amount     int64
	Sender     string
	Status     ParsedStatus
	Commission *int64
}

// ParsedReceipt is a closed sum over the three transfer variants.
// Consumers dispatch with a type switch; the unexported marker keeps
// the set of variants fixed to this package.
type ParsedReceipt interface {
	Kind() TransferKind
	Common() Details
	isParsedReceipt()
}

// ByPhone is a transfer addressed by the recipient's phone number.
type ByPhone struct {
	Details
	RecipientPhone string
	RecipientName  string // optional
	RecipientBank  string // optional
}

func (ByPhone) Kind() TransferKind { return TransferByPhone }
func (p ByPhone) Common() Details  { return p.Details }
func (ByPhone) isParsedReceipt()   {}

// ToClient is a transfer to another client of the same platform.
type ToClient struct {
	Details
	RecipientName      string
	RecipientCardLast4 string
}

func (ToClient) Kind() TransferKind { return TransferToClient }
func (p ToClient) Common() Details  { return p.Details }
func (ToClient) isParsedReceipt()   {}

// ToCard is a transfer to an external masked card number.
type ToCard struct {
	Details
	RecipientCardMasked string
}

func (ToCard) Kind() TransferKind { return TransferToCard }
func (p ToCard) Common() Details  { return p.Details }
func (ToCard) isParsedReceipt()   {}
