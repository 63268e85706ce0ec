package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"instaclone/database"
	"instaclone/handlers"
	"instaclone/middleware"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.DB.Close()

	hub := handlers.NewHub(handlers.DBStore{})
	go hub.Run()

	h := handlers.New(hub)

	r := mux.NewRouter()

	// Auth
	r.HandleFunc("/api/auth/signup", handlers.Signup).Methods("POST")
	r.HandleFunc("/api/auth/login", handlers.Login).Methods("POST")
	r.HandleFunc("/api/auth/logout", handlers.Logout).Methods("POST")
	r.Handle("/api/auth/logout-all", middleware.Auth(http.HandlerFunc(handlers.LogoutAll))).Methods("POST")
	r.Handle("/api/auth/me", middleware.Auth(http.HandlerFunc(handlers.Me))).Methods("GET")

	// Authenticated API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth)
	api.HandleFunc("/search/users", h.SearchUsers).Methods("GET")
	api.HandleFunc("/conversations", h.GetConversations).Methods("GET")
	api.HandleFunc("/messages/{userId}", h.GetMessages).Methods("GET")
	api.HandleFunc("/messages/{userId}/read", h.MarkAsRead).Methods("POST")
	api.HandleFunc("/notifications", h.GetNotifications).Methods("GET")
	api.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods("POST")
	api.HandleFunc("/friends", h.GetFriends).Methods("GET")
	api.HandleFunc("/friends", h.AddFriend).Methods("POST")
	api.HandleFunc("/friends/requests", h.GetFriendRequests).Methods("GET")
	api.HandleFunc("/friends/{id}/accept", h.AcceptFriend).Methods("POST")
	api.HandleFunc("/friends/{userId}", h.RemoveFriend).Methods("DELETE")

	// Realtime channel. Session auth is optional here: the user:join frame
	// identifies the client, the session only pins it when present.
	r.Handle("/ws", middleware.OptionalAuth(http.HandlerFunc(hub.ServeWS)))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	log.Println("Server exited properly")
}
