// Package pdf renders retirement certificates.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData is everything printed on a retirement certificate.
type CertificateData struct {
	CertificateNumber string
	RetirementID      string
	CreditID          string
	ProjectName       string
	EcosystemType     string
	Location          string
	Amount            float64
	Reason            string
	BeneficiaryName   string
	BeneficiaryEmail  string
	RetiredAt         time.Time
	OnChainTxHash     string
	EvidenceCID       string
}

// Options configures the page.
type Options struct {
	Title       string
	Issuer      string
	FontFamily  string
	AccentColor [3]int
}

func DefaultOptions() Options {
	return Options{
		Title:       "Certificate of Carbon Credit Retirement",
		Issuer:      "Samudra Ledger Blue Carbon Registry",
		FontFamily:  "Arial",
		AccentColor: [3]int{0, 105, 148},
	}
}

// CertificateGenerator renders certificates as PDF documents
type CertificateGenerator struct {
	options Options
}

func NewCertificateGenerator(options Options) *CertificateGenerator {
	return &CertificateGenerator{options: options}
}

// Generate returns the PDF bytes for one retirement.
func (g *CertificateGenerator) Generate(data CertificateData) ([]byte, error) {
	doc := gofpdf.New("L", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(false, 15)
	doc.SetTitle(g.options.Title, true)
	doc.SetAuthor(g.options.Issuer, true)
	doc.AddPage()

	r, gr, b := g.options.AccentColor[0], g.options.AccentColor[1], g.options.AccentColor[2]
	w, h := doc.GetPageSize()

	doc.SetDrawColor(r, gr, b)
	doc.SetLineWidth(1.5)
	doc.Rect(10, 10, w-20, h-20, "D")

	doc.SetY(28)
	doc.SetFont(g.options.FontFamily, "B", 24)
	doc.SetTextColor(r, gr, b)
	doc.CellFormat(0, 12, g.options.Title, "", 1, "C", false, 0, "")

	doc.SetFont(g.options.FontFamily, "", 12)
	doc.SetTextColor(90, 90, 90)
	doc.CellFormat(0, 8, g.options.Issuer, "", 1, "C", false, 0, "")
	doc.Ln(8)

	doc.SetFont(g.options.FontFamily, "", 13)
	doc.SetTextColor(0, 0, 0)
	holder := data.BeneficiaryName
	if holder == "" {
		holder = data.BeneficiaryEmail
	}
	doc.MultiCell(0, 8, fmt.Sprintf(
		"This certifies that %s has permanently retired %s tCO2e of blue carbon credits issued to the project \"%s\".",
		holder, formatAmount(data.Amount), data.ProjectName,
	), "", "C", false)
	doc.Ln(6)

	rows := [][2]string{
		{"Certificate No.", data.CertificateNumber},
		{"Retirement ID", data.RetirementID},
		{"Credit ID", data.CreditID},
		{"Ecosystem", data.EcosystemType},
		{"Location", data.Location},
		{"Retirement reason", data.Reason},
		{"Retired at", data.RetiredAt.UTC().Format("02 Jan 2006 15:04 MST")},
	}
	if data.OnChainTxHash != "" {
		rows = append(rows, [2]string{"Ledger transaction", data.OnChainTxHash})
	}
	if data.EvidenceCID != "" {
		rows = append(rows, [2]string{"Evidence CID", data.EvidenceCID})
	}

	labelWidth := 55.0
	valueWidth := w - 80 - labelWidth
	for _, row := range rows {
		doc.SetX(40)
		doc.SetFont(g.options.FontFamily, "B", 11)
		doc.CellFormat(labelWidth, 8, row[0], "B", 0, "L", false, 0, "")
		doc.SetFont(g.options.FontFamily, "", 11)
		doc.CellFormat(valueWidth, 8, row[1], "B", 1, "L", false, 0, "")
	}

	doc.SetY(h - 28)
	doc.SetFont(g.options.FontFamily, "I", 9)
	doc.SetTextColor(128, 128, 128)
	doc.CellFormat(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02")), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
