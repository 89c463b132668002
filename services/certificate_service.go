package services

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/yieldnest/invest_api/models"
)

//go:embed templates/certificate.html
var certificateTemplate string

var certificateTmpl = template.Must(template.New("certificate").Parse(certificateTemplate))

// PDFRenderer turns an HTML document into PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// FileArchive stores a generated file and returns its public URL.
type FileArchive interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

type Certificate struct {
	InvestmentID uuid.UUID
	PDF          []byte
	URL          string
}

// GenerateCertificate renders the certificate of an investment for its owner
// or an admin. With an archive configured the PDF is uploaded and its URL
// stored on the investment; an upload failure still returns the PDF.
func (l *Ledger) GenerateCertificate(ctx context.Context, caller Identity, investmentID uuid.UUID) (*Certificate, error) {
	if l.renderer == nil {
		return nil, fmt.Errorf("generate certificate: no PDF renderer configured")
	}

	inv, err := l.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, fmt.Errorf("generate certificate: %w", err)
	}
	if inv.UserID != caller.UserID && !l.isAdmin(caller) {
		// Do not reveal other users' investments.
		return nil, ErrNotFound
	}
	holder, err := l.store.GetUser(ctx, inv.UserID)
	if err != nil {
		return nil, fmt.Errorf("generate certificate: %w", err)
	}

	html, err := renderCertificateHTML(holder, inv, l.clock())
	if err != nil {
		return nil, fmt.Errorf("generate certificate: failed to render HTML: %w", err)
	}
	pdf, err := l.renderer.RenderPDF(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("generate certificate: failed to print PDF: %w", err)
	}

	cert := &Certificate{InvestmentID: inv.ID, PDF: pdf}
	if l.archive == nil {
		return cert, nil
	}
	url, err := l.archive.Upload(ctx, fmt.Sprintf("%s_%s", inv.UserID, inv.ID), pdf)
	if err != nil {
		log.Printf("🔥 Failed to archive certificate for investment %s: %v", inv.ID, err)
		return cert, nil
	}
	if err := l.store.SetCertificateURL(ctx, inv.ID, url); err != nil {
		log.Printf("⚠️ Certificate archived but URL not stored for investment %s: %v", inv.ID, err)
	}
	cert.URL = url
	log.Printf("✅ Generated certificate for investment %s", inv.ID)
	return cert, nil
}

func renderCertificateHTML(holder *models.User, inv *models.Investment, now time.Time) (string, error) {
	state := inv.AccrualState()
	data := struct {
		HolderName   string
		PlanName     string
		Amount       string
		DailyPercent string
		DurationDays int
		DaysAccrued  int
		Earnings     string
		ApprovedDate string
		Status       string
		InvestmentID string
		IssuedDate   string
	}{
		HolderName:   holder.FullName,
		PlanName:     inv.PlanName,
		Amount:       inv.Amount.StringFixed(2),
		DailyPercent: state.DailyPercent.Shift(2).String(),
		DurationDays: state.DurationDays,
		DaysAccrued:  state.DaysAccrued,
		Earnings:     state.Earnings.StringFixed(2),
		ApprovedDate: inv.ApprovedAt.Format("January 2, 2006"),
		Status:       inv.Status,
		InvestmentID: inv.ID.String(),
		IssuedDate:   now.Format("January 2, 2006"),
	}

	var rendered bytes.Buffer
	if err := certificateTmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}
