package server

import (
	"context"
	"net/http"
	"time"

	appkafka "example.com/microblog/internal/broker"
	"example.com/microblog/internal/feed"
	"example.com/microblog/internal/logger"
	"example.com/microblog/internal/middleware"
	"example.com/microblog/internal/store"
)

type Server struct {
	store       store.StoreInterface
	kafkaWriter appkafka.KafkaWriter
	feed        *feed.Resolver
}

var logg = logger.New()

// newServer wires the store into the feed resolver once, so handlers share
// a single resolver instance.
func newServer(st store.StoreInterface, writer appkafka.KafkaWriter) *Server {
	return &Server{
		store:       st,
		kafkaWriter: writer,
		feed:        &feed.Resolver{Subs: st, Posts: st},
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Public endpoints (no JWT required)
	mux.Handle("POST /register", http.HandlerFunc(s.registerHandler))
	mux.Handle("POST /login", http.HandlerFunc(s.loginHandler))

	// Protected endpoints with JWT authentication middleware
	mux.Handle("POST /posts", middleware.JWTAuth(http.HandlerFunc(s.createPostHandler)))
	mux.Handle("GET /posts", middleware.JWTAuth(http.HandlerFunc(s.getPostHandler)))
	mux.Handle("PUT /posts", middleware.JWTAuth(http.HandlerFunc(s.updatePostHandler)))
	mux.Handle("DELETE /posts", middleware.JWTAuth(http.HandlerFunc(s.deletePostHandler)))
	mux.Handle("GET /posts/bytag", middleware.JWTAuth(http.HandlerFunc(s.postsByTagHandler)))
	mux.Handle("GET /posts/byauthor", middleware.JWTAuth(http.HandlerFunc(s.postsByAuthorHandler)))
	mux.Handle("POST /comments", middleware.JWTAuth(http.HandlerFunc(s.addCommentHandler)))
	mux.Handle("GET /comments", middleware.JWTAuth(http.HandlerFunc(s.listCommentsHandler)))
	mux.Handle("POST /subscribe", middleware.JWTAuth(http.HandlerFunc(s.subscribeHandler)))
	mux.Handle("POST /unsubscribe", middleware.JWTAuth(http.HandlerFunc(s.unsubscribeHandler)))
	mux.Handle("GET /subscriptions", middleware.JWTAuth(http.HandlerFunc(s.listSubscriptionsHandler)))
	mux.Handle("GET /feed", middleware.JWTAuth(http.HandlerFunc(s.getFeedHandler)))
	mux.Handle("GET /notifications", middleware.JWTAuth(http.HandlerFunc(s.listNotificationsHandler)))

	return mux
}

// Run starts the HTTPS server with JWT-protected routes and graceful shutdown.
func Run(ctx context.Context, st store.StoreInterface, writer appkafka.KafkaWriter, addr string) {
	s := newServer(st, writer)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		logg.Info("server", "Starting HTTPS server on "+addr)
		// TLS: cert.pem and key.pem should be valid certificates in specified paths
		if err := srv.ListenAndServeTLS("/certs/cert.pem", "/certs/key.pem"); err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
