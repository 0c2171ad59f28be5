package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolportal/internal/config"
	"schoolportal/internal/handler"
	"schoolportal/internal/httpmiddleware"
	"schoolportal/internal/metrics"
	"schoolportal/internal/portal"
	"schoolportal/internal/state"
	"schoolportal/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)
	res, err := store.Open(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer res.Close()

	svc := portal.NewService(res.Backend, portal.Options{
		AdminUsername: cfg.AdminUsername,
		AdminEmail:    cfg.AdminEmail,
		Location:      cfg.EventTimezone,
		Metrics:       m,
	})
	if res.Memory != nil && cfg.AdminPassword != "" {
		if _, err := svc.ProvisionAdmin(ctx, "", cfg.AdminPassword); err != nil {
			log.Printf("provision admin: %v", err)
		}
	}

	st := state.New(state.WithPersister(res.Persister), state.WithMetrics(m))
	if u, err := st.Restore(ctx); err != nil {
		log.Printf("restore user: %v", err)
	} else if u != nil {
		log.Printf("restored user %s (%s)", u.Username, u.Role)
	}

	events, err := svc.AuthEvents(ctx)
	if err != nil {
		return err
	}
	go func() {
		if err := st.WatchAuth(ctx, events, svc); err != nil && ctx.Err() == nil {
			log.Printf("auth events stopped: %v", err)
		}
	}()

	if err := st.Init(ctx, svc); err != nil {
		log.Printf("initial load incomplete: %v", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware(httpmiddleware.ByIP))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		deps := res.Healthy(c.Request.Context())
		status := http.StatusOK
		for _, ok := range deps {
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": "ok", "ready": st.State().AppReady, "deps": deps})
	})

	loginLimit := httpmiddleware.NewTokenBucket(cfg.LoginRateLimitPerMin, cfg.LoginRateLimitPerMin)
	handler.New(svc, st, handler.Tokens{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}).Register(r, loginLimit.Middleware(httpmiddleware.ByIPAndUsername))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (backend %s)", cfg.HTTPPort, cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
