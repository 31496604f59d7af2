// Package parser turns text extracted from a bank notification PDF
// into a typed receipt. Parsing is pure: no I/O, no clock, no store.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	receipt "otc-settlement/internal/receipt/domain"
)

const (
	successMarker = "Успешно"

	markerByPhone  = "по номеру телефона"
	markerToClient = "Клиенту Т-Банка"
	markerToCard   = "на карту"

	senderMinLen = 5
)

var bankMarkers = []string{"Т-Банк", "Тинькофф"}

// Parser extracts a ParsedReceipt from receipt text.
type Parser struct{}

// New constructs a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse extracts a typed receipt from text. On failure the returned
// error is a *receipt.ParseError carrying the reason.
func (p *Parser) Parse(text string) (receipt.ParsedReceipt, error) {
	text = normalize(text)

	if !strings.Contains(text, successMarker) {
		return nil, receipt.NewParseError(receipt.ReasonStatusNotSuccess)
	}

	timestamp, ok := extractDateTime(text)
	if !ok {
		return nil, receipt.NewParseError(receipt.ReasonDateTimeNotFound)
	}

	amount, ok := extractAmount(text)
	if !ok {
		return nil, receipt.NewParseError(receipt.ReasonAmountNotFound)
	}

	sender, ok := extractSender(text)
	if !ok {
		return nil, receipt.NewParseError(receipt.ReasonSenderNotFound)
	}

	details := receipt.Details{
		Timestamp:  timestamp,
		Amount:     amount,
		Sender:     sender,
		Status:     receipt.StatusSuccess,
		Commission: extractCommission(text),
	}

	switch classifyTransfer(text) {
	case receipt.TransferByPhone:
		return extractByPhone(text, details)
	case receipt.TransferToClient:
		return extractToClient(text, details)
	case receipt.TransferToCard:
		return extractToCard(text, details)
	default:
		return nil, receipt.NewParseError(receipt.ReasonUnknownTransferType)
	}
}

// normalize collapses the whitespace zoo PDF extractors produce:
// non-breaking and narrow spaces become plain spaces, CRLF becomes LF.
func normalize(text string) string {
	replacer := strings.NewReplacer(
		" ", " ", // no-break space
		" ", " ", // narrow no-break space
		" ", " ", // thin space
		"\r\n", "\n",
	)
	return replacer.Replace(text)
}

func classifyTransfer(text string) receipt.TransferKind {
	switch {
	case strings.Contains(text, markerByPhone):
		return receipt.TransferByPhone
	case strings.Contains(text, markerToClient):
		return receipt.TransferToClient
	case strings.Contains(text, markerToCard):
		return receipt.TransferToCard
	default:
		return ""
	}
}

// Datetime patterns, tried in order: full timestamp with seconds,
// without seconds, spaced-dot variants, then date-only defaulting
// to noon. First match wins.
var datetimePatterns = []struct {
	re     *regexp.Regexp
	layout string
	noon   bool
}{
	{regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4}) +(\d{2}:\d{2}:\d{2})`), "02.01.2006 15:04:05", false},
	{regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4}) +(\d{2}:\d{2})`), "02.01.2006 15:04", false},
	{regexp.MustCompile(`(\d{2}) *\. *(\d{2}) *\. *(\d{4}) +(\d{2}:\d{2}:\d{2})`), "02.01.2006 15:04:05", false},
	{regexp.MustCompile(`(\d{2}) *\. *(\d{2}) *\. *(\d{4}) +(\d{2}:\d{2})`), "02.01.2006 15:04", false},
	{regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4})`), "02.01.2006", true},
}

func extractDateTime(text string) (time.Time, bool) {
	for _, pattern := range datetimePatterns {
		match := pattern.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := strings.Join(match[1:], " ")
		if len(match) == 4+1 {
			// spaced-dot variant captures date parts separately
			value = match[1] + "." + match[2] + "." + match[3] + " " + match[4]
		}
		parsed, err := time.Parse(pattern.layout, value)
		if err != nil {
			continue
		}
		if pattern.noon {
			parsed = parsed.Add(12 * time.Hour)
		}
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

// amountPattern captures the integer before the ruble glyph in the
// "Сумма" field. The "Итого" total is deliberately not matched: it
// includes commission.
var amountPattern = regexp.MustCompile(`Сумма\D{0,10}([\d ]+) *₽`)

func extractAmount(text string) (int64, bool) {
	match := amountPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	return parseGroupedInt(match[1])
}

var (
	commissionPattern = regexp.MustCompile(`Комиссия\D{0,10}([\d ]+) *₽`)
	noCommissionRe    = regexp.MustCompile(`Без +комиссии`)
)

func extractCommission(text string) *int64 {
	if match := commissionPattern.FindStringSubmatch(text); match != nil {
		if value, ok := parseGroupedInt(match[1]); ok {
			return &value
		}
	}
	if noCommissionRe.MatchString(text) {
		zero := int64(0)
		return &zero
	}
	return nil
}

// parseGroupedInt parses an integer with internal space grouping
// ("5 000" -> 5000).
func parseGroupedInt(raw string) (int64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

const nameRe = `[А-ЯЁA-Z][а-яёa-z-]+(?: +[А-ЯЁA-Z][а-яёА-ЯЁa-zA-Z.-]*)+`

// Sender patterns, tried in order: name glued to the label, label and
// name space-separated on one line, label with the name on the next
// line, then a loose label-then-name fallback.
var senderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Отправитель(` + nameRe + `)`),
	regexp.MustCompile(`Отправитель:? +(` + nameRe + `)`),
	regexp.MustCompile(`Отправитель:? *\n *(` + nameRe + `)`),
	regexp.MustCompile(`(` + nameRe + `) *\n *Отправитель`),
}

var senderDenylist = []string{
	"Сумма", "Итого", "Комиссия", "Отправитель", "Получатель",
	"Телефон", "Карта", "Банк", "Квитанция", "Статус", "Перевод",
}

func extractSender(text string) (string, bool) {
	for _, pattern := range senderPatterns {
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

func validName(candidate string) bool {
	if len([]rune(candidate)) < senderMinLen {
		return false
	}
	for _, label := range senderDenylist {
		if strings.Contains(candidate, label) {
			return false
		}
	}
	return true
}
