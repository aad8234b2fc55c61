package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"portal/internal/config"
	"portal/internal/database"
	"portal/internal/middleware"
	"portal/internal/modules/accounts"
	"portal/internal/modules/presence"
	"portal/internal/modules/session"
	jwtsvc "portal/internal/pkg/jwt"
	"portal/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadSessionRuntimeConfig()
	if err != nil {
		log.Fatal(err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal(err)
	}

	accountRepo := repository.NewAccountRepository(db)
	authStateRepo := repository.NewAuthStateRepository(db, cfg.RotationHistoryLimit)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	hub := presence.NewHub()
	defer hub.Close()
	presenceHandler := presence.NewHandler(hub, j)

	sessionService := session.NewService(
		accountRepo,
		authStateRepo,
		authStateRepo,
		j,
		hub,
		cfg.RefreshTokenPepper,
		cfg.StrictSessionCheck,
	)
	sessionHandler := session.NewHandler(sessionService)

	accountsService := accounts.NewService(accountRepo, sessionService)
	accountsHandler := accounts.NewHandler(accountsService)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	presenceHandler.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	{
		// public
		sessionHandler.RegisterPublicRoutes(v1)
		accountsHandler.RegisterPublicRoutes(v1)

		// protected
		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			sessionHandler.RegisterProtectedRoutes(protected)
			accountsHandler.RegisterProtectedRoutes(protected)
		}

		// admin
		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(j), middleware.AdminOnly())
		{
			sessionHandler.RegisterAdminRoutes(admin)
			accountsHandler.RegisterAdminRoutes(admin)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
