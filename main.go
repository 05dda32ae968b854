package main

import (
	"context"
	"log"
	"time"

	"github.com/LovationAdmin/horizon-api/config"
	"github.com/LovationAdmin/horizon-api/handlers"
	"github.com/LovationAdmin/horizon-api/routes"
	"github.com/LovationAdmin/horizon-api/services"
	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	cipher, err := utils.NewCipher(cfg.DataEncryptionKey)
	if err != nil {
		log.Fatal("Invalid DATA_ENCRYPTION_KEY: ", err)
	}

	gateway, closeGateway := identityGateway(cfg)
	defer closeGateway()

	userStore := services.NewUserStore(gateway, cfg.Identity.UserCollectionID)
	bankStore := services.NewBankAccountStore(gateway, cfg.Identity.BankCollectionID, cipher)

	plaid := services.NewPlaidService(cfg.Plaid)
	dwolla := services.NewDwollaService(cfg.Dwolla)

	userService := services.NewUserService(gateway, userStore, dwolla)
	homeService := services.NewHomeService(bankStore, plaid, cipher, cfg.Server.HomeCacheTTL)

	wsHandler := handlers.NewWSHandler()
	defer wsHandler.Close()

	bankLinkService := services.NewBankLinkService(plaid, dwolla, bankStore, cipher, cfg.Link, homeService, wsHandler)

	router := routes.NewRouter(cfg, routes.Handlers{
		Auth:     &handlers.AuthHandler{Users: userService, Session: cfg.Session},
		BankLink: &handlers.BankLinkHandler{Links: bankLinkService},
		Home:     &handlers.HomeHandler{Home: homeService},
		WS:       wsHandler,
		Sessions: userService,
	})

	utils.LogStartup("Horizon API", "1.0.0", cfg.Server.Port)
	log.Printf("🌍 CORS: Allowing origin %s", cfg.Server.FrontendURL)
	log.Printf("🏦 Plaid: %s | Dwolla: %s | Identity: %s", cfg.Plaid.Env, cfg.Dwolla.Env, cfg.Identity.Backend)

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

// identityGateway builds the configured backend. The returned func releases
// whatever the backend holds open.
func identityGateway(cfg *config.Config) (services.IdentityGateway, func()) {
	if cfg.Identity.Backend != config.BackendPostgres {
		return services.NewAppwriteGateway(cfg.Identity), func() {}
	}

	db, err := config.InitDB(cfg.Identity.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	log.Println("✅ Database connected successfully")

	if err := config.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	gateway := services.NewPostgresGateway(db, cfg.Identity.DatabaseID, cfg.Session.MaxAge)
	go scheduleSessionCleaning(gateway)

	return gateway, func() { db.Close() }
}

func scheduleSessionCleaning(gateway *services.PostgresGateway) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	cleanExpiredSessions(gateway)
	for range ticker.C {
		cleanExpiredSessions(gateway)
	}
}

func cleanExpiredSessions(gateway *services.PostgresGateway) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rows, err := gateway.PurgeExpiredSessions(ctx)
	if err != nil {
		log.Printf("❌ Session cleanup failed: %v", err)
		return
	}
	if rows > 0 {
		log.Printf("🧹 Cleaned %d expired sessions", rows)
	}
}
