package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/services"
)

type CreateWithdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address" validate:"required,max=255"`
	Crypto        string          `json:"crypto" validate:"required,max=20"`
}

func (h *Handler) CheckWithdrawalEligibility(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	res, err := h.Ledger.CheckWithdrawalEligibility(c.UserContext(), id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) CreateWithdrawal(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req CreateWithdrawalRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	w, err := h.Ledger.CreateWithdrawal(c.UserContext(), id.UserID, services.WithdrawalRequest{
		Amount:        req.Amount,
		WalletAddress: req.WalletAddress,
		Crypto:        req.Crypto,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *Handler) ListMyWithdrawals(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	f, q := paging(c)
	withdrawals, total, err := h.Ledger.ListUserWithdrawals(c.UserContext(), id.UserID, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": withdrawals, "meta": pageMeta(total, q)})
}
