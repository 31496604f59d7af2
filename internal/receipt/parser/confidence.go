package parser

import (
	"strings"

	receipt "otc-settlement/internal/receipt/domain"
)

// Confidence weights. The checklist mirrors the fields Parse requires
// plus the bank-name marker; weights sum to 1.
const (
	weightSuccess = 0.25
	weightAmount  = 0.25
	weightSender  = 0.15
	weightDate    = 0.10
	weightBank    = 0.10
	weightVariant = 0.15
)

// Confidence scores how much of a receipt the text looks like, in
// [0,1]. A fully populated receipt scores 1. Unlike Parse this never
// fails; it is meant for triaging FAILED receipts offline.
func (p *Parser) Confidence(text string) float64 {
	text = normalize(text)

	score := 0.0
	if strings.Contains(text, successMarker) {
		score += weightSuccess
	}
	if _, ok := extractDateTime(text); ok {
		score += weightDate
	}
	if _, ok := extractAmount(text); ok {
		score += weightAmount
	}
	if _, ok := extractSender(text); ok {
		score += weightSender
	}
	for _, marker := range bankMarkers {
		if strings.Contains(text, marker) {
			score += weightBank
			break
		}
	}
	if variantFieldsPresent(text) {
		score += weightVariant
	}
	if score > 1 {
		score = 1
	}
	return score
}

func variantFieldsPresent(text string) bool {
	var err error
	switch classifyTransfer(text) {
	case receipt.TransferByPhone:
		_, err = extractByPhone(text, receipt.Details{})
	case receipt.TransferToClient:
		_, err = extractToClient(text, receipt.Details{})
	case receipt.TransferToCard:
		_, err = extractToCard(text, receipt.Details{})
	default:
		return false
	}
	return err == nil
}
