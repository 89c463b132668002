package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/yieldnest/invest_api/utils"
)

func (h *Handler) GetUserStats(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	stats, err := h.Ledger.GetUserStats(c.UserContext(), id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

func (h *Handler) GetReferralInfo(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	info, err := h.Ledger.ReferralInfo(c.UserContext(), id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(info)
}

func (h *Handler) ListInvestments(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	invs, err := h.Ledger.ListUserInvestments(c.UserContext(), id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": invs})
}

// ListEarnings accepts ?limit= and ?since= (RFC 3339 or a plain date).
func (h *Handler) ListEarnings(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := utils.ParseTimeFlexible(raw)
		if err != nil {
			return badRequest(c, "Invalid since parameter")
		}
		since = &t
	}

	summary, err := h.Ledger.ListUserEarnings(c.UserContext(), id.UserID, limit, since)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(summary)
}

func (h *Handler) GetCertificate(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	investmentID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid investment ID")
	}

	cert, err := h.Ledger.GenerateCertificate(c.UserContext(), id, investmentID)
	if err != nil {
		return fail(c, err)
	}
	if cert.URL != "" {
		c.Set("X-Certificate-URL", cert.URL)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="certificate-%s.pdf"`, cert.InvestmentID))
	return c.Send(cert.PDF)
}
