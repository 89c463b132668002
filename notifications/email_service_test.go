package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yieldnest/invest_api/services"
)

func newTestService(t *testing.T, status int, seen *brevoPayload, key *string) *BrevoService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*key = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		w.WriteHeader(status)
		w.Write([]byte(`{"messageId":"1"}`))
	}))
	t.Cleanup(srv.Close)

	s := NewBrevoService("test-key", "noreply@example.com", "Invest")
	require.NotNil(t, s)
	s.Endpoint = srv.URL
	return s
}

func TestNewBrevoServiceRequiresSettings(t *testing.T) {
	assert.Nil(t, NewBrevoService("", "noreply@example.com", "Invest"))
	assert.Nil(t, NewBrevoService("key", "", "Invest"))
}

func TestSendWithdrawalStatusUpdate(t *testing.T) {
	var seen brevoPayload
	var key string
	s := newTestService(t, http.StatusCreated, &seen, &key)

	hash := "0xabc123"
	err := s.SendWithdrawalStatusUpdate(context.Background(), services.WithdrawalStatusEmail{
		ToEmail: "ada@example.com",
		ToName:  "Ada",
		Amount:  decimal.NewFromInt(200),
		Status:  "Approved",
		TxHash:  &hash,
		Crypto:  "USDT",
	})
	require.NoError(t, err)

	assert.Equal(t, "test-key", key)
	assert.Equal(t, "Your withdrawal has been approved", seen.Subject)
	require.Len(t, seen.To, 1)
	assert.Equal(t, "ada@example.com", seen.To[0]["email"])
	assert.Contains(t, seen.HTMLContent, "200.00 USDT")
	assert.Contains(t, seen.HTMLContent, "0xabc123")
	assert.NotContains(t, seen.HTMLContent, "Note from our team")
}

func TestSendReportsProviderFailure(t *testing.T) {
	var seen brevoPayload
	var key string
	s := newTestService(t, http.StatusBadRequest, &seen, &key)

	err := s.SendInvestmentMatured(context.Background(), services.MaturityEmail{
		ToEmail:  "ada@example.com",
		PlanName: "Standard",
		Amount:   decimal.NewFromInt(1000),
		Earnings: decimal.NewFromInt(3000),
	})
	require.Error(t, err)
	assert.Equal(t, "ada", seen.To[0]["name"], "name falls back to the mailbox")
}

func TestSendRejectsBadRecipient(t *testing.T) {
	s := NewBrevoService("key", "noreply@example.com", "Invest")
	err := s.SendInvestmentMatured(context.Background(), services.MaturityEmail{ToEmail: "not-an-email"})
	assert.Error(t, err)
}
