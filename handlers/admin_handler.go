package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/yieldnest/invest_api/services"
)

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type WithdrawalStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=Pending Approved Rejected"`
	TxHash *string `json:"tx_hash" validate:"omitempty,max=255"`
	Note   *string `json:"admin_note"`
}

func (h *Handler) AdminListPayments(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	f, q := paging(c)
	payments, total, err := h.Ledger.ListPayments(c.UserContext(), id, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": payments, "meta": pageMeta(total, q)})
}

func (h *Handler) AdminSetPaymentStatus(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	paymentID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	var req StatusRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	res, err := h.Ledger.SetPaymentStatus(c.UserContext(), id, paymentID, req.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"payment":    res.Payment,
		"changed":    res.Changed,
		"investment": res.Investment,
		"referral":   res.Referral,
	})
}

func (h *Handler) AdminListWithdrawals(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	f, q := paging(c)
	withdrawals, total, err := h.Ledger.ListWithdrawals(c.UserContext(), id, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": withdrawals, "meta": pageMeta(total, q)})
}

// AdminSetWithdrawalStatus reports an undelivered email as "warning"; the
// settlement itself has succeeded.
func (h *Handler) AdminSetWithdrawalStatus(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	withdrawalID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid withdrawal ID")
	}
	var req WithdrawalStatusRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	res, err := h.Ledger.SetWithdrawalStatus(c.UserContext(), id, withdrawalID, services.WithdrawalUpdate{
		Status: req.Status,
		TxHash: req.TxHash,
		Note:   req.Note,
	})
	if err != nil {
		return fail(c, err)
	}
	body := fiber.Map{"withdrawal": res.Withdrawal, "changed": res.Changed}
	if res.NotificationErr != nil {
		body["warning"] = "Status updated but the notification email could not be sent"
	}
	return c.JSON(body)
}

func (h *Handler) AdminListUsers(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	f, q := paging(c)
	users, total, err := h.Ledger.ListUsers(c.UserContext(), id, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": users, "meta": pageMeta(total, q)})
}

type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type UserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active blocked"`
}

func (h *Handler) AdminSetUserRole(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	var req RoleRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if err := h.Ledger.SetUserRole(c.UserContext(), id, userID, req.Role); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "User role updated", "role": req.Role})
}

func (h *Handler) AdminSetUserStatus(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	var req UserStatusRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if err := h.Ledger.SetUserStatus(c.UserContext(), id, userID, req.Status); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "User status updated", "status": req.Status})
}

func (h *Handler) AdminRunAccrual(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	if !h.Ledger.IsAdmin(id) {
		return fail(c, services.ErrForbidden)
	}
	return h.runAccrual(c)
}

func (h *Handler) AdminMigrateAccrual(c *fiber.Ctx) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	updated, err := h.Ledger.BackfillAccrualFields(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Accrual fields backfilled", "updated": updated})
}

func (h *Handler) runAccrual(c *fiber.Ctx) error {
	run, err := h.Ledger.RunPeriodicAccrual(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	log.Printf("✅ Accrual run: %d credited of %d candidates", run.Credited, run.Candidates)
	return c.JSON(fiber.Map{
		"processed":  run.Credited,
		"candidates": run.Candidates,
		"skipped":    run.Skipped,
		"failed":     run.Failed,
		"amount":     run.Amount,
	})
}
