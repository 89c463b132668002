package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/yieldnest/invest_api/configs"
	"github.com/yieldnest/invest_api/database"
	"github.com/yieldnest/invest_api/documents"
	"github.com/yieldnest/invest_api/handlers"
	"github.com/yieldnest/invest_api/jobs"
	"github.com/yieldnest/invest_api/locks"
	"github.com/yieldnest/invest_api/notifications"
	"github.com/yieldnest/invest_api/routes"
	"github.com/yieldnest/invest_api/services"
	"github.com/yieldnest/invest_api/websocket"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(config.Config("DATABASE_URL"))
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("🔥 %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	opts := []services.Option{
		services.WithAdminPolicy(services.AdminPolicy(config.Config("ADMIN_EMAIL"))),
		services.WithEvents(hub),
		services.WithLocker(newLocker(ctx)),
	}
	if email := notifications.NewBrevoService(
		config.Config("BREVO_API_KEY"),
		config.Config("EMAIL_SENDER"),
		config.Config("EMAIL_SENDER_NAME"),
	); email != nil {
		opts = append(opts, services.WithNotifier(email))
	}
	opts = append(opts, services.WithCertificates(documents.NewChromePDFRenderer(), newArchive()))

	ledger := services.NewLedger(database.NewStore(db), opts...)
	if err := ledger.SeedAdmin(ctx, config.Config("ADMIN_FULL_NAME"), config.Config("ADMIN_EMAIL"), config.Config("ADMIN_PASSWORD")); err != nil {
		log.Fatalf("🔥 %v", err)
	}

	c, err := jobs.Start(jobs.Schedules{
		Accrual:  config.ConfigDefault("ACCRUAL_SCHEDULE", "@hourly"),
		Maturity: config.ConfigDefault("MATURITY_SCHEDULE", "@daily"),
	}, ledger, ledger)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}
	defer c.Stop()

	secret := config.Config("JWT_SECRET")
	if secret == "" {
		log.Fatal("🔥 JWT_SECRET is not set")
	}

	app := routes.NewApp(false)
	routes.Setup(app, handlers.New(ledger, hub, secret), routes.Config{
		JWTSecret: secret,
		CronKey:   config.Config("CRON_KEY"),
	})

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		_ = app.Shutdown()
	}()

	port := config.ConfigDefault("PORT", "8080")
	log.Printf("✅ Server is running on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}

func newLocker(ctx context.Context) services.Locker {
	addr := config.Config("REDIS_ADDR")
	if addr == "" {
		log.Println("⚠️ REDIS_ADDR not set, accrual leases are process-local")
		return locks.NewLocalLocker()
	}
	client, err := locks.NewRedisClient(ctx, addr, config.Config("REDIS_PASS"), config.ConfigInt("REDIS_DB", 0))
	if err != nil {
		log.Printf("⚠️ Redis unavailable (%v), accrual leases are process-local", err)
		return locks.NewLocalLocker()
	}
	log.Println("✅ Redis connected for accrual leases")
	return locks.NewRedisLocker(client, "invest:")
}

func newArchive() services.FileArchive {
	url := config.Config("CLOUDINARY_URL")
	if url == "" {
		return nil
	}
	archive, err := documents.NewCloudinaryArchive(url)
	if err != nil {
		log.Printf("⚠️ Certificate archive disabled: %v", err)
		return nil
	}
	return archive
}
