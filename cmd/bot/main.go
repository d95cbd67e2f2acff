package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/repuestoselcholo/devolucionesbot/internal/bot"
	"github.com/repuestoselcholo/devolucionesbot/internal/config"
	"github.com/repuestoselcholo/devolucionesbot/internal/database"
	"github.com/repuestoselcholo/devolucionesbot/internal/directory"
	"github.com/repuestoselcholo/devolucionesbot/internal/handlers"
	"github.com/repuestoselcholo/devolucionesbot/internal/models"
	"github.com/repuestoselcholo/devolucionesbot/internal/services/drive"
	"github.com/repuestoselcholo/devolucionesbot/internal/services/mailer"
	"github.com/repuestoselcholo/devolucionesbot/internal/services/printer"
	"github.com/repuestoselcholo/devolucionesbot/internal/services/sheets"
	"github.com/repuestoselcholo/devolucionesbot/internal/session"
	"github.com/repuestoselcholo/devolucionesbot/internal/storage"
	"github.com/repuestoselcholo/devolucionesbot/internal/transport/telegram"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in the shutdown handler below

	// 3. Synchronize schema
	log.Println("🚀 Synchronizing database schema...")
	if err := db.AutoMigrate(&models.Session{}); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Google Sheets & Drive clients; a failure degrades, never aborts
	sheetClient := sheets.Disabled()
	if c, err := sheets.New(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID); err != nil {
		log.Printf("⚠️ Sheets disabled: %v", err)
	} else {
		sheetClient = c
		if err := sheetClient.EnsureTabs(ctx, models.SenderTabs()); err != nil {
			log.Printf("⚠️ Could not ensure spreadsheet tabs: %v", err)
		} else {
			log.Println("✅ Google Sheets initialized")
		}
	}

	driveClient := drive.Disabled()
	if c, err := drive.New(ctx, cfg.Sheets.CredentialsFile, cfg.Drive.ParentFolderID); err != nil {
		log.Printf("⚠️ Drive disabled: %v", err)
	} else {
		driveClient = c
		log.Println("✅ Google Drive initialized")
	}

	// 5. Local ticket folders
	shelf := storage.NewShelf(cfg.TicketsDir)
	senderKeys := make([]string, 0, 3)
	for _, s := range models.Senders() {
		senderKeys = append(senderKeys, s.Key)
	}
	if err := shelf.EnsureFolders(senderKeys); err != nil {
		log.Fatalf("Failed to prepare ticket folders: %v", err)
	}
	log.Println("📁 Local ticket folders ensured")

	// 6. Wire the engine and its collaborators
	store := session.NewStore(db)
	dir := directory.New(sheetClient)
	gen := printer.NewGenerator(cfg.LogoPath)

	var cloud bot.CloudStore
	if driveClient.Available() {
		cloud = driveClient
	}
	var mail bot.Mailer
	if cfg.Mail.Username != "" {
		mail = mailer.New(cfg.Mail)
	} else {
		log.Println("⚠️ Mail disabled: MAIL_USER not set")
	}

	orch := bot.NewOrchestrator(sheetClient, gen, shelf, cloud, mail)
	engine := bot.NewEngine(store, dir, orch, sheetClient, shelf)

	transport, err := telegram.New(cfg.BotToken, engine, store, cfg.AllowedUsers)
	if err != nil {
		log.Fatalf("Failed to init Telegram transport: %v", err)
	}
	log.Printf("✅ Authorized on account %s", transport.Username())

	if cfg.OwnerChatID != 0 {
		orch.NotifyOwner = func(text string) {
			transport.SendTo(cfg.OwnerChatID, text)
		}
		log.Printf("✅ Owner notifications enabled for chat %d", cfg.OwnerChatID)
	}

	// 7. Liveness HTTP server
	router := handlers.NewRouter(func() handlers.Status {
		return handlers.Status{
			Bot:    "running",
			Sheets: sheetClient.Available(),
			Drive:  driveClient.Available(),
		}
	})
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		log.Printf("🚀 Liveness server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start liveness server: %v", err)
		}
	}()

	// 8. Polling loop with graceful shutdown
	pollErr := make(chan error, 1)
	go func() {
		pollErr <- transport.Run(ctx)
	}()
	log.Println("🤖 Bot de devoluciones started (polling)")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-shutdown:
		log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)
	case err := <-pollErr:
		if err != nil {
			log.Printf("❌ Polling stopped: %v", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
