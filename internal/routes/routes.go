package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mtaa-app/mtaa-backend/internal/handlers"
	"github.com/mtaa-app/mtaa-backend/internal/middleware"
)

func SetupRoutes(r *chi.Mux) {
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (no token required)
		r.Post("/auth/register", handlers.Register)
		r.Post("/auth/login", handlers.Login)
		r.Post("/auth/verify-otp", handlers.VerifyOTP)
		r.Post("/auth/resend-otp", handlers.ResendOTP)
		r.Post("/auth/refresh-token", handlers.RefreshToken)
		r.Post("/auth/logout", handlers.Logout)

		// Neighborhood directory is public
		r.Get("/neighborhoods", handlers.ListNeighborhoods)
		r.Get("/neighborhoods/{id}", handlers.GetNeighborhood)

		// Everything below requires a valid access token
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(handlers.TokenService()))

			r.Post("/auth/logout-all", handlers.LogoutAll)

			r.Get("/users/me", handlers.GetMe)
			r.Patch("/users/me", handlers.UpdateMe)
			r.Delete("/users/me", handlers.DeactivateMe)

			r.Post("/posts", handlers.CreatePost)
			r.Get("/posts", handlers.ListPosts)
			r.Get("/posts/{id}", handlers.GetPost)
			r.Patch("/posts/{id}", handlers.UpdatePost)
			r.Delete("/posts/{id}", handlers.DeletePost)

			r.Post("/listings", handlers.CreateListing)
			r.Get("/listings", handlers.ListListings)
			r.Get("/listings/{id}", handlers.GetListing)
			r.Patch("/listings/{id}", handlers.UpdateListing)
			r.Delete("/listings/{id}", handlers.DeleteListing)

			r.Post("/bookings", handlers.CreateBooking)
			r.Get("/bookings", handlers.ListBookings)
			r.Patch("/bookings/{id}", handlers.UpdateBooking)

			r.Get("/notifications", handlers.ListNotifications)
			r.Post("/notifications/read", handlers.MarkNotificationsRead)

			r.Get("/messages/history", handlers.GetChatHistory)

			r.Post("/upload", handlers.UploadFile)
		})
	})

	// WebSocket endpoint for realtime neighborhood chat. Authenticates
	// inside the handler (header or ?token=).
	r.Get("/ws/chat", handlers.ChatWebSocket)
}
