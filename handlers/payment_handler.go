package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/services"
)

type SubmitPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Crypto string          `json:"crypto" validate:"required,max=20"`
	TxHash string          `json:"tx_hash" validate:"max=255"`
	Plan   string          `json:"plan" validate:"max=50"`
}

func (h *Handler) SubmitPayment(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req SubmitPaymentRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	p, err := h.Ledger.SubmitPayment(c.UserContext(), id.UserID, services.PaymentRequest{
		Amount: req.Amount,
		Crypto: req.Crypto,
		TxHash: req.TxHash,
		Plan:   req.Plan,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) ListMyPayments(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	f, q := paging(c)
	payments, total, err := h.Ledger.ListUserPayments(c.UserContext(), id.UserID, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": payments, "meta": pageMeta(total, q)})
}
