package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/mtaa-app/mtaa-backend/internal/config"
	"github.com/mtaa-app/mtaa-backend/internal/database"
	"github.com/mtaa-app/mtaa-backend/internal/handlers"
	"github.com/mtaa-app/mtaa-backend/internal/middleware"
	"github.com/mtaa-app/mtaa-backend/internal/routes"
	"github.com/mtaa-app/mtaa-backend/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if cfg.IsProduction() && cfg.JWTSecret == "your-secret-key-change-in-production" {
		log.Fatal("JWT_SECRET must be set in production")
	}

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB (chat history)
	log.Printf("Connecting to MongoDB...")
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo()

	if err := services.EnsureChatIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB chat indexes: %v", err)
	} else {
		log.Println("✅ MongoDB chat indexes ensured")
	}

	// Seed the neighborhood directory
	if err := services.SeedNeighborhoods(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to seed neighborhoods: %v", err)
	} else {
		log.Println("✅ Neighborhood directory seeded")
	}

	// Wire identity and session services
	handlers.InitServices(cfg)
	log.Println("✅ Identity and session services initialized")

	// Initialize Cloudinary (optional)
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		if err := handlers.InitCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret); err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("File uploads will not be available")
		} else {
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. File uploads will not be available")
	}

	// Start the Redis chat fan-out listener
	services.StartChatSubscriber(context.Background())

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Production: SecurityHeaders → GlobalRateLimit → LoginRateLimit
	// Non-production: Redis-based rate limit only
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity() {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, per-IP + login rate limiting)")
	} else {
		r.Use(middleware.RateLimitMiddleware)
	}

	// Health check (no auth)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r)

	log.Println("📋 Registered routes:")
	log.Println("  GET   /health")
	log.Println("  POST  /api/v1/auth/register")
	log.Println("  POST  /api/v1/auth/login")
	log.Println("  POST  /api/v1/auth/verify-otp")
	log.Println("  POST  /api/v1/auth/resend-otp")
	log.Println("  POST  /api/v1/auth/refresh-token")
	log.Println("  POST  /api/v1/auth/logout")
	log.Println("  POST  /api/v1/auth/logout-all")
	log.Println("  GET   /api/v1/neighborhoods")
	log.Println("  GET   /api/v1/users/me")
	log.Println("  CRUD  /api/v1/posts /api/v1/listings /api/v1/bookings")
	log.Println("  GET   /api/v1/notifications")
	log.Println("  GET   /api/v1/messages/history")
	log.Println("  POST  /api/v1/upload")
	log.Println("  GET   /ws/chat")

	log.Printf("🚀 Mtaa backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
