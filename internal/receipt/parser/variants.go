package parser

import (
	"regexp"
	"strings"

	receipt "otc-settlement/internal/receipt/domain"
)

// Phone numbers appear in one fixed punctuation format on these
// receipts: +7 (XXX) XXX-XX-XX.
var phonePattern = regexp.MustCompile(`\+7 \(\d{3}\) \d{3}-\d{2}-\d{2}`)

var (
	recipientNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Получатель(` + nameRe + `)`),
		regexp.MustCompile(`Получатель:? +(` + nameRe + `)`),
		regexp.MustCompile(`Получатель:? *\n *(` + nameRe + `)`),
	}
	recipientBankPattern = regexp.MustCompile(`Банк получателя:? *\n? *([^\n]+)`)
	cardLast4Pattern     = regexp.MustCompile(`\*+ ?(\d{4})`)
	maskedCardPattern    = regexp.MustCompile(`\d{6}\*{2,8}\d{4}`)
)

func extractByPhone(text string, details receipt.Details) (receipt.ParsedReceipt, error) {
	phone := phonePattern.FindString(text)
	if phone == "" {
		return nil, receipt.NewParseError(receipt.ReasonPhoneNotFound)
	}
	parsed := receipt.ByPhone{
		Details:        details,
		RecipientPhone: phone,
	}
	if name, ok := extractRecipientName(text); ok {
		parsed.RecipientName = name
	}
	if match := recipientBankPattern.FindStringSubmatch(text); match != nil {
		bank := strings.TrimSpace(match[1])
		if bank != "" && validName(bank) {
			parsed.RecipientBank = bank
		}
	}
	return parsed, nil
}

func extractToClient(text string, details receipt.Details) (receipt.ParsedReceipt, error) {
	name, ok := extractRecipientName(text)
	if !ok {
		return nil, receipt.NewParseError(receipt.ReasonRecipientNotFound)
	}
	match := cardLast4Pattern.FindStringSubmatch(text)
	if match == nil {
		return nil, receipt.NewParseError(receipt.ReasonCardNotFound)
	}
	return receipt.ToClient{
		Details:            details,
		RecipientName:      name,
		RecipientCardLast4: match[1],
	}, nil
}

func extractToCard(text string, details receipt.Details) (receipt.ParsedReceipt, error) {
	masked := maskedCardPattern.FindString(text)
	if masked == "" {
		return nil, receipt.NewParseError(receipt.ReasonCardNotFound)
	}
	return receipt.ToCard{
		Details:             details,
		RecipientCardMasked: masked,
	}, nil
}

func extractRecipientName(text string) (string, bool) {
	for _, pattern := range recipientNamePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		candidate := strings.TrimSpace(match[1])
		if validName(candidate) {
			return candidate, true
		}
	}
	return "", false
}
