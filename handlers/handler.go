package handlers

import (
	"errors"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/yieldnest/invest_api/middleware"
	"github.com/yieldnest/invest_api/services"
	"github.com/yieldnest/invest_api/websocket"
)

var validate = validator.New()

const defaultTokenTTL = 72 * time.Hour

// Handler serves the HTTP API over one Ledger.
type Handler struct {
	Ledger    *services.Ledger
	Hub       *websocket.Hub
	JWTSecret string
	TokenTTL  time.Duration
}

func New(ledger *services.Ledger, hub *websocket.Hub, jwtSecret string) *Handler {
	return &Handler{Ledger: ledger, Hub: hub, JWTSecret: jwtSecret, TokenTTL: defaultTokenTTL}
}

var errorStatus = map[error]int{
	services.ErrNotFound:            fiber.StatusNotFound,
	services.ErrInvalidInput:        fiber.StatusBadRequest,
	services.ErrForbidden:           fiber.StatusForbidden,
	services.ErrUserBlocked:         fiber.StatusForbidden,
	services.ErrBelowMinimum:        fiber.StatusBadRequest,
	services.ErrNoMaturedInvestment: fiber.StatusBadRequest,
	services.ErrInsufficientFunds:   fiber.StatusBadRequest,
	services.ErrInvalidTransition:   fiber.StatusConflict,
	services.ErrConflict:            fiber.StatusConflict,
	services.ErrEmailTaken:          fiber.StatusConflict,
	services.ErrInvalidCredentials:  fiber.StatusUnauthorized,
	services.ErrDuplicate:           fiber.StatusConflict,
}

// fail writes err as {"error", "reason"}. Unknown errors are logged and
// reported as a generic 500.
func fail(c *fiber.Ctx, err error) error {
	for sentinel, status := range errorStatus {
		if errors.Is(err, sentinel) {
			return c.Status(status).JSON(fiber.Map{"error": sentinel.Error(), "reason": services.Reason(sentinel)})
		}
	}
	log.Printf("🔥 %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error", "reason": "internal"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "reason": "invalid_input"})
}

// parseBody decodes and validates the JSON body into req, writing the 400
// response itself when it fails.
func parseBody(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return false, badRequest(c, err.Error())
	}
	return true, nil
}

func identity(c *fiber.Ctx) (services.Identity, error) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return services.Identity{}, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized", "reason": "unauthenticated"})
	}
	return id, nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

type pageQuery struct {
	page  int
	limit int
}

func paging(c *fiber.Ctx) (services.ListFilter, pageQuery) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	f := services.ListFilter{Status: c.Query("status"), Limit: limit, Offset: (page - 1) * limit}
	return f, pageQuery{page: page, limit: limit}
}

func pageMeta(total int64, q pageQuery) fiber.Map {
	return fiber.Map{
		"total":     total,
		"page":      q.page,
		"last_page": int(math.Ceil(float64(total) / float64(q.limit))),
	}
}
