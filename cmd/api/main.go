package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/identity"
	"rollcall/internal/queue"
	"rollcall/internal/session"
	"rollcall/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(context.Background(), db.Client, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:jobs")
	}

	identities := identity.NewStore(db.Client)
	sessions := session.NewRegistry(db.Client, cfg.SessionTTL)
	coordinator := attendance.NewCoordinator(db.Client, sessions, cfg.StorageTimeout)
	records := attendance.NewRecords(db.Client)

	secureCookies := gin.Mode() == gin.ReleaseMode

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting: a general cap everywhere, a strict one on logins
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())
	loginLimiter := httpmiddleware.NewTokenBucket(cfg.LoginLimitPerMin, cfg.LoginLimitPerMin).GinMiddleware()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": statusWord(dbHealthy), "db": dbHealthy, "redis": redisHealthy})
	})

	r.POST("/v1/register", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			Name      string `json:"name" binding:"required"`
			Password  string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "student_id, name and password are required"})
			return
		}

		err := identities.Register(c.Request.Context(), req.StudentID, req.Name, req.Password)
		if errors.Is(err, identity.ErrDuplicateID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "student id already exists"})
			return
		}
		if err != nil {
			log.Printf("registration failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": "registration successful"})
	})

	r.POST("/v1/login", loginLimiter, func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			Password  string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "student_id and password are required"})
			return
		}

		student, err := identities.VerifyStudent(c.Request.Context(), req.StudentID, req.Password)
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			log.Printf("login failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}

		token, _, err := auth.Issue(student.ID, student.Name, auth.RoleStudent, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AuthTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.SetCookie(auth.CookieName, token, int(cfg.AuthTTL.Seconds()), "/", "", secureCookies, true)
		c.JSON(http.StatusOK, gin.H{
			"success":      "login successful",
			"student_id":   student.ID,
			"student_name": student.Name,
		})
	})

	r.POST("/v1/admin/login", loginLimiter, func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		err := identities.VerifyAdmin(c.Request.Context(), req.Username, req.Password)
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			log.Printf("admin login failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}

		token, _, err := auth.Issue(req.Username, "", auth.RoleAdmin, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AuthTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.SetCookie(auth.CookieName, token, int(cfg.AuthTTL.Seconds()), "/", "", secureCookies, true)
		c.JSON(http.StatusOK, gin.H{"success": "admin login successful"})
	})

	r.POST("/v1/logout", func(c *gin.Context) {
		c.SetCookie(auth.CookieName, "", -1, "/", "", secureCookies, true)
		c.JSON(http.StatusOK, gin.H{"success": "logged out"})
	})

	// The current-session view is public: the dashboard polls it before login.
	r.GET("/v1/sessions/current", func(c *gin.Context) {
		active, err := sessions.Active(c.Request.Context())
		if err != nil {
			log.Printf("get active session failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get current session"})
			return
		}
		if active == nil {
			c.JSON(http.StatusOK, gin.H{"code": nil, "subject": "No active session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": active.Code, "subject": active.Subject})
	})

	adminGroup := r.Group("/v1", auth.RequireRole(auth.RoleAdmin, cfg.JWTSigningKey, cfg.JWTIssuer))

	adminGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			Subject string `json:"subject" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "subject is required"})
			return
		}

		created, err := sessions.Create(c.Request.Context(), req.Subject)
		if errors.Is(err, session.ErrEmptySubject) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "subject is required"})
			return
		}
		if err != nil {
			log.Printf("session creation failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate session"})
			return
		}

		if err := q.Publish(c.Request.Context(), queue.NewSweepJob(created.ExpiresAt)); err != nil {
			log.Printf("sweep job publish failed: %v", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"code":       created.Code,
			"subject":    created.Subject,
			"expires_at": created.ExpiresAt,
		})
	})

	adminGroup.GET("/attendance", func(c *gin.Context) {
		list, err := records.ListAll(c.Request.Context())
		if err != nil {
			log.Printf("list attendance failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get attendance records"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"attendance": list, "total_records": len(list)})
	})

	studentGroup := r.Group("/v1", auth.RequireRole(auth.RoleStudent, cfg.JWTSigningKey, cfg.JWTIssuer))

	studentGroup.POST("/attendance", func(c *gin.Context) {
		var req struct {
			Code string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
			return
		}

		studentID := auth.Identity(c).Subject
		subject, err := coordinator.Mark(c.Request.Context(), studentID, req.Code)
		if err != nil {
			status, msg := markErrorResponse(err)
			if status == http.StatusInternalServerError {
				log.Printf("mark attendance failed for %s: %v", studentID, err)
			}
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": "attendance marked for " + subject, "subject": subject})
	})

	studentGroup.GET("/attendance/stats", func(c *gin.Context) {
		stats, err := records.StatsFor(c.Request.Context(), auth.Identity(c).Subject)
		if err != nil {
			log.Printf("attendance stats failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get attendance stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	r.StaticFile("/", "web/index.html")
	r.StaticFile("/dashboard", "web/dashboard.html")
	r.StaticFile("/admin", "web/admin.html")
	r.Static("/static", "web/static")

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// markErrorResponse maps coordinator errors onto HTTP responses. Invalid
// input gets 400, storage trouble gets a retryable 503, anything else a
// generic 500 with no internals leaked.
func markErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, attendance.ErrSessionInvalid):
		return http.StatusBadRequest, "session expired or invalid"
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return http.StatusBadRequest, "attendance already marked for this session"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "storage busy, retry shortly"
	default:
		return http.StatusInternalServerError, "failed to mark attendance"
	}
}

func statusWord(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
