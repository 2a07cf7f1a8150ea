package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolattend/internal/analytics"
	"schoolattend/internal/attendance"
	"schoolattend/internal/audit"
	"schoolattend/internal/auth"
	"schoolattend/internal/config"
	"schoolattend/internal/directory"
	"schoolattend/internal/httpmiddleware"
	"schoolattend/internal/metrics"
	"schoolattend/internal/queue"
	"schoolattend/internal/store"
)

const dateLayout = "2006-01-02"

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
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.AuditQueueKey)
	}

	policy := attendance.NewEditPolicy(cfg.EditWindowDays)
	svc := attendance.NewService(db, policy)
	auditRepo := audit.NewRepository(db.Client)
	recordRepo := attendance.NewRepository(db.Client)
	dirRepo := directory.NewRepository(db.Client)
	snapCache := analytics.NewSnapshotCache(redisClient.Client, cfg.AnalyticsCacheTTL)
	engine := analytics.NewEngine(recordRepo, dirRepo, snapCache)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/staff/token", func(c *gin.Context) {
		var req struct {
			StaffID string `json:"staff_id" binding:"required"`
			Role    string `json:"role" binding:"required"`
			Name    string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != auth.RoleTeacher && req.Role != auth.RoleAdmin && req.Role != auth.RoleStudent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be teacher, admin or student"})
			return
		}
		token, err := auth.Issue(req.StaffID, req.Role, req.Name, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.Value,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.StaffAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	staffOnly := auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	authGroup.POST("/attendance", staffOnly, func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			ClassID   string `json:"class_id" binding:"required"`
			SubjectID string `json:"subject_id" binding:"required"`
			TeacherID string `json:"teacher_id"`
			Date      string `json:"date" binding:"required"`
			Session   string `json:"session" binding:"required"`
			Status    string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		actor := auth.FromContext(c).Subject
		res, err := svc.Mark(c.Request.Context(), attendance.Record{
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			SubjectID: req.SubjectID,
			TeacherID: req.TeacherID,
			Date:      date,
			Session:   req.Session,
			Status:    attendance.Status(req.Status),
		}, actor)
		if err != nil {
			metrics.Mutations.WithLabelValues("create", "error").Inc()
			writeError(c, err)
			return
		}
		metrics.Mutations.WithLabelValues("create", "ok").Inc()
		metrics.AuditEntries.Inc()
		c.JSON(http.StatusCreated, res)
	})

	authGroup.POST("/attendance/batch", staffOnly, func(c *gin.Context) {
		var req struct {
			ClassID   string `json:"class_id" binding:"required"`
			SubjectID string `json:"subject_id" binding:"required"`
			TeacherID string `json:"teacher_id"`
			Date      string `json:"date" binding:"required"`
			Session   string `json:"session" binding:"required"`
			Entries   []struct {
				StudentID string `json:"student_id" binding:"required"`
				Status    string `json:"status" binding:"required"`
			} `json:"entries" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		recs := make([]attendance.Record, 0, len(req.Entries))
		for _, entry := range req.Entries {
			recs = append(recs, attendance.Record{
				StudentID: entry.StudentID,
				ClassID:   req.ClassID,
				SubjectID: req.SubjectID,
				TeacherID: req.TeacherID,
				Date:      date,
				Session:   req.Session,
				Status:    attendance.Status(entry.Status),
			})
		}
		actor := auth.FromContext(c).Subject
		results, err := svc.MarkBatch(c.Request.Context(), recs, actor)
		if err != nil {
			metrics.Mutations.WithLabelValues("create", "error").Inc()
			writeError(c, err)
			return
		}
		metrics.Mutations.WithLabelValues("create", "ok").Add(float64(len(results)))
		metrics.AuditEntries.Add(float64(len(results)))
		c.JSON(http.StatusCreated, gin.H{"results": results})
	})

	authGroup.PATCH("/attendance/:id", staffOnly, func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		actor := auth.FromContext(c).Subject
		res, err := svc.ApplyEdit(c.Request.Context(), c.Param("id"), attendance.Status(req.Status), actor, req.Reason)
		if err != nil {
			metrics.Mutations.WithLabelValues("update", "error").Inc()
			writeError(c, err)
			return
		}
		metrics.Mutations.WithLabelValues("update", "ok").Inc()
		metrics.AuditEntries.Inc()
		c.JSON(http.StatusOK, res)
	})

	authGroup.DELETE("/attendance/:id", staffOnly, func(c *gin.Context) {
		actor := auth.FromContext(c).Subject
		entry, err := svc.Remove(c.Request.Context(), c.Param("id"), actor, c.Query("reason"))
		if err != nil {
			metrics.Mutations.WithLabelValues("delete", "error").Inc()
			writeError(c, err)
			return
		}
		metrics.Mutations.WithLabelValues("delete", "ok").Inc()
		metrics.AuditEntries.Inc()
		c.JSON(http.StatusOK, gin.H{"audit": entry})
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		q := attendance.Query{
			StudentID: c.Query("student_id"),
			ClassID:   c.Query("class_id"),
			SubjectID: c.Query("subject_id"),
			TeacherID: c.Query("teacher_id"),
			Status:    attendance.Status(c.Query("status")),
			Limit:     intQuery(c, "limit", 0),
			Offset:    intQuery(c, "offset", 0),
		}
		var ok bool
		if q.From, q.To, ok = windowQuery(c); !ok {
			return
		}
		records, err := svc.ListRecords(c.Request.Context(), q)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	authGroup.GET("/attendance/:id/permission", func(c *gin.Context) {
		rec, err := recordRepo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		asOf := time.Now().UTC()
		if v := c.Query("as_of"); v != "" {
			if asOf, err = time.ParseInLocation(dateLayout, v, time.UTC); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
				return
			}
		}
		c.JSON(http.StatusOK, svc.CheckEditPermission(rec, asOf))
	})

	authGroup.GET("/students/:id/summary", func(c *gin.Context) {
		from, to, ok := windowQuery(c)
		if !ok {
			return
		}
		summary, err := svc.StudentSummary(c.Request.Context(), c.Param("id"), from, to)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	authGroup.GET("/classes/:id/summary", func(c *gin.Context) {
		from, to, ok := windowQuery(c)
		if !ok {
			return
		}
		summary, err := svc.ClassSummary(c.Request.Context(), c.Param("id"), from, to)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"class_id": c.Param("id"), "summary": summary})
	})

	authGroup.GET("/analytics", adminOnly, func(c *gin.Context) {
		from, to, ok := windowQuery(c)
		if !ok {
			return
		}
		snap, err := engine.Compute(c.Request.Context(), c.DefaultQuery("school_id", "default"),
			analytics.Window{From: from, To: to},
			analytics.Filters{
				ClassID:   c.Query("class_id"),
				SubjectID: c.Query("subject_id"),
				TeacherID: c.Query("teacher_id"),
				Status:    attendance.Status(c.Query("status")),
			})
		if err != nil {
			metrics.AnalyticsComputes.WithLabelValues("error").Inc()
			writeError(c, err)
			return
		}
		metrics.AnalyticsComputes.WithLabelValues("ok").Inc()
		c.JSON(http.StatusOK, snap)
	})

	listAudit := func(c *gin.Context, action audit.Action) {
		f := audit.Filter{
			Actor:  c.Query("actor"),
			Action: audit.Action(c.Query("action")),
			Search: c.Query("search"),
			Limit:  intQuery(c, "limit", 0),
			Offset: intQuery(c, "offset", 0),
		}
		if v := c.Query("from"); v != "" {
			t, err := time.ParseInLocation(dateLayout, v, time.UTC)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
				return
			}
			f.From = t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.ParseInLocation(dateLayout, v, time.UTC)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
				return
			}
			// inclusive end of day
			f.To = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		entries, total, err := auditRepo.List(c.Request.Context(), f)
		if err != nil {
			writeError(c, attendance.ErrDataUnavailable("audit query failed: %v", err))
			return
		}

		// Reads of the trail leave their own trace, off the request path.
		msg, err := audit.AccessEvent{
			Action:      action,
			PerformedBy: auth.FromContext(c).Subject,
			PerformedAt: time.Now().UTC(),
			Detail:      c.Request.URL.RawQuery,
		}.ToMessage()
		if err == nil {
			if err := q.Publish(c.Request.Context(), msg); err != nil {
				log.Printf("audit access publish failed: %v", err)
			}
		}

		type entryView struct {
			audit.Entry
			Severity audit.Severity `json:"severity"`
		}
		views := make([]entryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, entryView{Entry: e, Severity: audit.DeriveSeverity(e)})
		}
		c.JSON(http.StatusOK, gin.H{"entries": views, "total": total})
	}

	authGroup.GET("/audit", adminOnly, func(c *gin.Context) { listAudit(c, audit.ActionView) })
	authGroup.GET("/audit/export", adminOnly, func(c *gin.Context) { listAudit(c, audit.ActionExport) })

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// writeError maps the core's error codes onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var ae *attendance.Error
	if !errors.As(err, &ae) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch ae.Code {
	case attendance.CodeInvalidArgument:
		status = http.StatusBadRequest
	case attendance.CodeNotFound:
		status = http.StatusNotFound
	case attendance.CodePermissionDenied:
		status = http.StatusForbidden
	case attendance.CodeDataUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": ae.Message, "code": ae.Code})
}

// windowQuery parses from/to, defaulting to the last 30 days. It writes the
// error response itself; ok=false means the handler should bail.
func windowQuery(c *gin.Context) (from, to time.Time, ok bool) {
	now := time.Now().UTC()
	to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from = to.AddDate(0, 0, -29)
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.ParseInLocation(dateLayout, v, time.UTC); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return from, to, false
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.ParseInLocation(dateLayout, v, time.UTC); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return from, to, false
		}
	}
	return from, to, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
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

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
