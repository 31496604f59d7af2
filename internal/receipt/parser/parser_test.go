package parser

import (
	"errors"
	"testing"
	"time"

	receipt "otc-settlement/internal/receipt/domain"
)

const byPhoneText = `Т-Банк
12.03.2024 14:05:33
Итого: 5 100 ₽
Перевод по номеру телефона
Сумма 5 000 ₽
Комиссия 100 ₽
Отправитель Иван Петров
Телефон получателя +7 (912) 345-67-89
Получатель Анна Сергеевна
Банк получателя Сбербанк
Квитанция № 1-042-513
Успешно`

const toClientText = `Т-Банк
12.03.2024 14:05
Перевод Клиенту Т-Банка
Сумма 12 500 ₽
Без комиссии
Отправитель Иван Петров
Получатель Анна Сергеевна
Карта получателя **** 4321
Успешно`

const toCardText = `Тинькофф
12.03.2024
Перевод на карту
Сумма 700 ₽
Отправитель Иван Петров
Карта получателя 220220******1234
Успешно`

func TestParse_ByPhone(t *testing.T) {
	parsed, err := New().Parse(byPhoneText)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	byPhone, ok := parsed.(receipt.ByPhone)
	if !ok {
		t.Fatalf("expected ByPhone, got %T", parsed)
	}
	if byPhone.RecipientPhone != "+7 (912) 345-67-89" {
		t.Fatalf("unexpected phone %q", byPhone.RecipientPhone)
	}
	if byPhone.RecipientName != "Анна Сергеевна" {
		t.Fatalf("unexpected recipient %q", byPhone.RecipientName)
	}
	if byPhone.RecipientBank != "Сбербанк" {
		t.Fatalf("unexpected bank %q", byPhone.RecipientBank)
	}

	common := parsed.Common()
	if common.Amount != 5000 {
		t.Fatalf("expected amount 5000, got %d", common.Amount)
	}
	if common.Sender != "Иван Петров" {
		t.Fatalf("unexpected sender %q", common.Sender)
	}
	if common.Status != receipt.StatusSuccess {
		t.Fatalf("unexpected status %q", common.Status)
	}
	if common.Commission == nil || *common.Commission != 100 {
		t.Fatalf("expected commission 100, got %v", common.Commission)
	}
	want := time.Date(2024, time.March, 12, 14, 5, 33, 0, time.UTC)
	if !common.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, common.Timestamp)
	}
}

func TestParse_ToClient(t *testing.T) {
	parsed, err := New().Parse(toClientText)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	toClient, ok := parsed.(receipt.ToClient)
	if !ok {
		t.Fatalf("expected ToClient, got %T", parsed)
	}
	if toClient.RecipientName != "Анна Сергеевна" {
		t.Fatalf("unexpected recipient %q", toClient.RecipientName)
	}
	if toClient.RecipientCardLast4 != "4321" {
		t.Fatalf("unexpected last4 %q", toClient.RecipientCardLast4)
	}
	common := parsed.Common()
	if common.Amount != 12500 {
		t.Fatalf("expected amount 12500, got %d", common.Amount)
	}
	// explicit "no commission" marker means zero, not absent
	if common.Commission == nil || *common.Commission != 0 {
		t.Fatalf("expected zero commission, got %v", common.Commission)
	}
	want := time.Date(2024, time.March, 12, 14, 5, 0, 0, time.UTC)
	if !common.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, common.Timestamp)
	}
}

func TestParse_ToCard(t *testing.T) {
	parsed, err := New().Parse(toCardText)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	toCard, ok := parsed.(receipt.ToCard)
	if !ok {
		t.Fatalf("expected ToCard, got %T", parsed)
	}
	if toCard.RecipientCardMasked != "220220******1234" {
		t.Fatalf("unexpected masked card %q", toCard.RecipientCardMasked)
	}
	common := parsed.Common()
	if common.Commission != nil {
		t.Fatalf("expected absent commission, got %v", common.Commission)
	}
	// date-only fallback lands at noon
	want := time.Date(2024, time.March, 12, 12, 0, 0, 0, time.UTC)
	if !common.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, common.Timestamp)
	}
}

func TestParse_SpacedDotDate(t *testing.T) {
	text := `12 . 03 . 2024 14:05
Перевод по номеру телефона
Сумма 5 000 ₽
Отправитель Иван Петров
Телефон получателя +7 (912) 345-67-89
Успешно`
	parsed, err := New().Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2024, time.March, 12, 14, 5, 0, 0, time.UTC)
	if got := parsed.Common().Timestamp; !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParse_NonBreakingSpaces(t *testing.T) {
	text := "12.03.2024 14:05\nПеревод по номеру телефона\nСумма 5 000 ₽\nОтправитель Иван Петров\nТелефон получателя +7 (912) 345-67-89\nУспешно"
	parsed, err := New().Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := parsed.Common().Amount; got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}
}

func TestParse_GluedSenderLabel(t *testing.T) {
	text := `12.03.2024 14:05
Перевод по номеру телефона
Сумма 5 000 ₽
ОтправительИван Петров
Телефон получателя +7 (912) 345-67-89
Успешно`
	parsed, err := New().Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := parsed.Common().Sender; got != "Иван Петров" {
		t.Fatalf("unexpected sender %q", got)
	}
}

func TestParse_Failures(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		reason receipt.ParseReason
	}{
		{"status not success", "Перевод по номеру телефона\nСумма 5 000 ₽", receipt.ReasonStatusNotSuccess},
		{"datetime missing", "Успешно\nСумма 5 000 ₽\nОтправитель Иван Петров", receipt.ReasonDateTimeNotFound},
		{"amount missing", "Успешно\n12.03.2024 14:05\nОтправитель Иван Петров", receipt.ReasonAmountNotFound},
		{"sender missing", "Успешно\n12.03.2024 14:05\nСумма 5 000 ₽", receipt.ReasonSenderNotFound},
		{"unknown transfer type", "Успешно\n12.03.2024 14:05\nСумма 5 000 ₽\nОтправитель Иван Петров", receipt.ReasonUnknownTransferType},
		{"phone missing", "Успешно\n12.03.2024 14:05\nПеревод по номеру телефона\nСумма 5 000 ₽\nОтправитель Иван Петров", receipt.ReasonPhoneNotFound},
		{"card missing", "Успешно\n12.03.2024 14:05\nПеревод на карту\nСумма 5 000 ₽\nОтправитель Иван Петров", receipt.ReasonCardNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().Parse(tc.text)
			if err == nil {
				t.Fatal("expected error")
			}
			parseErr, ok := receipt.AsParseError(err)
			if !ok {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, parseErr.Reason)
			}
		})
	}
}

func TestParse_ToClientMissingRecipient(t *testing.T) {
	text := `Успешно
12.03.2024 14:05
Перевод Клиенту Т-Банка
Сумма 5 000 ₽
Отправитель Иван Петров`
	_, err := New().Parse(text)
	parseErr, ok := receipt.AsParseError(err)
	if !ok {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Reason != receipt.ReasonRecipientNotFound {
		t.Fatalf("expected recipient reason, got %q", parseErr.Reason)
	}
	if errors.Is(err, receipt.ErrNotFound) {
		t.Fatal("parse errors must not alias repository errors")
	}
}

func TestConfidence(t *testing.T) {
	full := New().Confidence(byPhoneText)
	if full < 0.99 {
		t.Fatalf("expected full confidence, got %f", full)
	}
	empty := New().Confidence("совсем не квитанция")
	if empty != 0 {
		t.Fatalf("expected zero confidence, got %f", empty)
	}
	partial := New().Confidence("Успешно\nСумма 5 000 ₽")
	if partial <= empty || partial >= full {
		t.Fatalf("expected partial confidence between, got %f", partial)
	}
}
