package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yieldnest/invest_api/services"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string

	client *http.Client
}

var _ services.Notifier = (*BrevoService)(nil)

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewBrevoService returns nil when any setting is missing; callers then run
// without email.
func NewBrevoService(apiKey, senderEmail, senderName string) *BrevoService {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		log.Println("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		return nil
	}

	log.Printf("✅ Email service initialized for sender %s <%s>", senderName, senderEmail)
	return &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoService) send(ctx context.Context, toEmail, toName, subject, htmlContent string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	client := s.client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		log.Printf("Brevo API error: Status %d, Body: %s", resp.StatusCode, string(bodyBytes))
		return fmt.Errorf("failed to send email via Brevo: status %d", resp.StatusCode)
	}

	log.Printf("✅ Email %q sent successfully to %s", subject, toEmail)
	return nil
}

var withdrawalTmpl = template.Must(template.New("withdrawal").Parse(`
<h2>Withdrawal {{.Status}}</h2>
<p>Hello {{.Name}},</p>
<p>Your withdrawal of <strong>{{.Amount}} {{.Crypto}}</strong> has been <strong>{{.StatusLower}}</strong>.</p>
{{if .TxHash}}<p>Transaction hash: <code>{{.TxHash}}</code></p>{{end}}
{{if .Note}}<p>Note from our team: {{.Note}}</p>{{end}}
<p>Thank you for investing with us.</p>
`))

var maturityTmpl = template.Must(template.New("maturity").Parse(`
<h2>Your investment has matured</h2>
<p>Hello {{.Name}},</p>
<p>Your <strong>{{.Plan}}</strong> investment of <strong>{{.Amount}}</strong> has completed its term,
earning a total of <strong>{{.Earnings}}</strong>.</p>
<p>You can now request a withdrawal from your dashboard.</p>
`))

func (s *BrevoService) SendWithdrawalStatusUpdate(ctx context.Context, msg services.WithdrawalStatusEmail) error {
	data := map[string]string{
		"Name":        msg.ToName,
		"Status":      msg.Status,
		"StatusLower": strings.ToLower(msg.Status),
		"Amount":      msg.Amount.StringFixed(2),
		"Crypto":      msg.Crypto,
	}
	if msg.TxHash != nil {
		data["TxHash"] = *msg.TxHash
	}
	if msg.Note != nil {
		data["Note"] = *msg.Note
	}

	var html bytes.Buffer
	if err := withdrawalTmpl.Execute(&html, data); err != nil {
		return fmt.Errorf("failed to render withdrawal email: %w", err)
	}
	subject := fmt.Sprintf("Your withdrawal has been %s", strings.ToLower(msg.Status))
	return s.send(ctx, msg.ToEmail, msg.ToName, subject, html.String())
}

func (s *BrevoService) SendInvestmentMatured(ctx context.Context, msg services.MaturityEmail) error {
	data := map[string]string{
		"Name":     msg.ToName,
		"Plan":     msg.PlanName,
		"Amount":   msg.Amount.StringFixed(2),
		"Earnings": msg.Earnings.StringFixed(2),
	}

	var html bytes.Buffer
	if err := maturityTmpl.Execute(&html, data); err != nil {
		return fmt.Errorf("failed to render maturity email: %w", err)
	}
	return s.send(ctx, msg.ToEmail, msg.ToName, "Your investment has matured", html.String())
}
