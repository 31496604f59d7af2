// Package export renders settlement reports for operators: matched
// receipts against their transactions over a period.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	receipt "otc-settlement/internal/receipt/domain"
	transaction "otc-settlement/internal/transaction/domain"
)

// Report is the aggregated settlement view for a period.
type Report struct {
	From time.Time
	To   time.Time

	TotalReceipts   int
	MatchedReceipts int
	FailedReceipts  int
	TotalAmount     int64
	ReleasedAmount  int64

	Rows []Row
}

// Row is one receipt/transaction pair in the report.
type Row struct {
	ReceiptID string
	EmailID   string
	Amount    int64
	Status    string
	PayoutID  string
	OrderID   string
	TxStatus  string
	Date      time.Time
}

// Build aggregates receipts and transactions into a report.
func Build(from, to time.Time, receipts []*receipt.Receipt, transactions map[string]*transaction.Transaction) Report {
	report := Report{From: from, To: to}
	for _, rec := range receipts {
		if rec.CreatedAt.Before(from) || rec.CreatedAt.After(to) {
			continue
		}
		report.TotalReceipts++
		row := Row{
			ReceiptID: rec.ID,
			EmailID:   rec.EmailID,
			Amount:    rec.Amount,
			Status:    string(rec.Status),
			PayoutID:  rec.PayoutID,
			Date:      rec.CreatedAt,
		}
		switch {
		case rec.Status == receipt.ReceiptFailed:
			report.FailedReceipts++
		case rec.Matched():
			report.MatchedReceipts++
			report.TotalAmount += rec.Amount
		}
		if tx, ok := transactions[rec.PayoutID]; ok && tx != nil {
			row.OrderID = tx.OrderID
			row.TxStatus = string(tx.Status)
			if tx.Status == transaction.StatusCompleted {
				report.ReleasedAmount += rec.Amount
			}
		}
		report.Rows = append(report.Rows, row)
	}
	return report
}

// BuildPDF renders the report as a PDF.
func BuildPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Settlement Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s", report.From.Format("2006-01-02"), report.To.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Receipts: %d (matched %d, failed %d)", report.TotalReceipts, report.MatchedReceipts, report.FailedReceipts))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Matched Amount (RUB): %d", report.TotalAmount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Released Amount (RUB): %d", report.ReleasedAmount))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, "Receipt", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Payout", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Order", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Tx Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range report.Rows {
		pdf.CellFormat(45, 6, row.ReceiptID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, row.Date.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", row.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, row.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, row.PayoutID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, row.OrderID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, row.TxStatus, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders the report as an XLSX workbook.
func BuildXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	rowsSheet := "receipts"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(rowsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Settlement Report")
	_ = f.SetCellValue(summarySheet, "A3", "From")
	_ = f.SetCellValue(summarySheet, "B3", report.From.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A4", "To")
	_ = f.SetCellValue(summarySheet, "B4", report.To.Format("2006-01-02"))
	_ = f.SetCellValue(summarySheet, "A5", "Receipts")
	_ = f.SetCellValue(summarySheet, "B5", report.TotalReceipts)
	_ = f.SetCellValue(summarySheet, "A6", "Matched")
	_ = f.SetCellValue(summarySheet, "B6", report.MatchedReceipts)
	_ = f.SetCellValue(summarySheet, "A7", "Failed")
	_ = f.SetCellValue(summarySheet, "B7", report.FailedReceipts)
	_ = f.SetCellValue(summarySheet, "A8", "Matched Amount (RUB)")
	_ = f.SetCellValue(summarySheet, "B8", report.TotalAmount)
	_ = f.SetCellValue(summarySheet, "A9", "Released Amount (RUB)")
	_ = f.SetCellValue(summarySheet, "B9", report.ReleasedAmount)

	_ = f.SetCellValue(rowsSheet, "A1", "Receipt")
	_ = f.SetCellValue(rowsSheet, "B1", "Email")
	_ = f.SetCellValue(rowsSheet, "C1", "Date")
	_ = f.SetCellValue(rowsSheet, "D1", "Amount")
	_ = f.SetCellValue(rowsSheet, "E1", "Status")
	_ = f.SetCellValue(rowsSheet, "F1", "Payout")
	_ = f.SetCellValue(rowsSheet, "G1", "Order")
	_ = f.SetCellValue(rowsSheet, "H1", "Tx Status")
	for i, row := range report.Rows {
		line := i + 2
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("A%d", line), row.ReceiptID)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("B%d", line), row.EmailID)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("C%d", line), row.Date.Format("2006-01-02"))
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("D%d", line), row.Amount)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("E%d", line), row.Status)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("F%d", line), row.PayoutID)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("G%d", line), row.OrderID)
		_ = f.SetCellValue(rowsSheet, fmt.Sprintf("H%d", line), row.TxStatus)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
