package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/pricestack/pricestack-backend/internal/modules/pricing"
	"github.com/pricestack/pricestack-backend/internal/modules/session"
	"github.com/pricestack/pricestack-backend/internal/modules/shopify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from environment")
	}

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Successfully connected to the database!")

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	shopifyClient := shopify.NewClient(os.Getenv("SHOPIFY_API_VERSION"))

	// ── Tenant sessions: OAuth, session tokens, webhooks ────
	sessionRepo := session.NewPostgresRepository(db)
	sessionService := session.NewService(session.Config{
		APIKey:    os.Getenv("SHOPIFY_API_KEY"),
		APISecret: os.Getenv("SHOPIFY_API_SECRET"),
		Scopes:    os.Getenv("SHOPIFY_SCOPES"),
		AppURL:    os.Getenv("APP_URL"),
	}, sessionRepo, shopifyClient)
	session.NewHandler(sessionService, os.Getenv("SHOPIFY_API_KEY")).RegisterRoutes(router)

	// ── Price ledger ────────────────────────────────────────
	pricingRepo := pricing.NewPostgresRepository(db)
	pricingService := pricing.NewService(pricingRepo, shopifyClient)
	pricingHandler := pricing.NewHandler(pricingService)
	router.Route("/api", func(r chi.Router) {
		r.Use(session.RequireSession(sessionService))
		pricingHandler.RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Pricestack API server starting on :%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
