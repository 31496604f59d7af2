// Package mailbox defines the narrow contract this pipeline consumes
// from the mail transport. OAuth and API plumbing live behind it.
package mailbox

import (
	"context"
	"strings"
	"time"
)

// Query selects bank-notification messages.
type Query struct {
	From          string
	After         time.Time
	HasAttachment bool
	MaxResults    int
}

// MessageRef identifies one message in an account's mailbox.
type MessageRef struct {
	ID string
}

// Attachment is a decoded message attachment.
type Attachment struct {
	Filename string
	Data     []byte
	Size     int
}

// IsPDF reports whether the attachment filename carries the PDF
// extension.
func (a Attachment) IsPDF() bool {
	return strings.HasSuffix(strings.ToLower(a.Filename), ".pdf")
}

// Mailbox searches messages and fetches attachments for one or more
// configured accounts.
type Mailbox interface {
	SearchMessages(ctx context.Context, account string, q Query) ([]MessageRef, error)
	GetAttachments(ctx context.Context, account, messageID string) ([]Attachment, error)
}
