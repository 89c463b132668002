package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/yieldnest/invest_api/handlers"
	"github.com/yieldnest/invest_api/middleware"
)

type Config struct {
	JWTSecret string
	CronKey   string
}

func Setup(app *fiber.App, h *handlers.Handler, cfg Config) {
	api := app.Group("/api/v1")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	AuthRoutes(api, h)
	UserRoutes(api, h, cfg)
	AdminRoutes(api, h, cfg)
	CronRoutes(api, h, cfg)
	WebsocketRoutes(api, h)
}

func AuthRoutes(api fiber.Router, h *handlers.Handler) {
	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
}

func UserRoutes(api fiber.Router, h *handlers.Handler, cfg Config) {
	protected := middleware.Protected(cfg.JWTSecret, h.Ledger.ResolveIdentity)

	user := api.Group("/user", protected)
	user.Get("/stats", h.GetUserStats)
	user.Get("/referrals", h.GetReferralInfo)

	investments := api.Group("/investments", protected)
	investments.Get("", h.ListInvestments)
	investments.Get("/:id/certificate", h.GetCertificate)

	api.Get("/earnings", protected, h.ListEarnings)

	payments := api.Group("/payments", protected)
	payments.Post("", h.SubmitPayment)
	payments.Get("", h.ListMyPayments)

	withdrawals := api.Group("/withdrawals", protected)
	withdrawals.Get("/eligibility", h.CheckWithdrawalEligibility)
	withdrawals.Post("", h.CreateWithdrawal)
	withdrawals.Get("", h.ListMyWithdrawals)
}

func AdminRoutes(api fiber.Router, h *handlers.Handler, cfg Config) {
	admin := api.Group("/admin", middleware.Protected(cfg.JWTSecret, h.Ledger.ResolveIdentity), middleware.AdminRequired(h.Ledger.IsAdmin))

	admin.Get("/payments", h.AdminListPayments)
	admin.Put("/payments/:id/status", h.AdminSetPaymentStatus)

	admin.Get("/withdrawals", h.AdminListWithdrawals)
	admin.Put("/withdrawals/:id/status", h.AdminSetWithdrawalStatus)

	users := admin.Group("/users")
	users.Get("", h.AdminListUsers)
	users.Put("/:id/role", h.AdminSetUserRole)
	users.Put("/:id/status", h.AdminSetUserStatus)

	admin.Post("/accrual/run", h.AdminRunAccrual)
	admin.Post("/migrate-accrual", h.AdminMigrateAccrual)
}

func CronRoutes(api fiber.Router, h *handlers.Handler, cfg Config) {
	api.Post("/cron/accrue-earnings", middleware.CronKey(cfg.CronKey), h.CronAccrueEarnings)
}

func WebsocketRoutes(api fiber.Router, h *handlers.Handler) {
	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws", websocket.New(h.ServeWs))
}
