// admin.go - privacy-conscious card analytics and admin pages
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Event kinds recorded by the analytics store.
const (
	EventView   = "view"
	EventToggle = "toggle"
)

// retention is how long card events are kept before cleanup.
const retention = 365 * 24 * time.Hour

// ErrTrackingDisabled is returned by admin stats when no store is open.
var ErrTrackingDisabled = errors.New("tracking disabled")

// CardEvent is one recorded view or toggle. The client IP is only ever
// stored hashed.
type CardEvent struct {
	ID        int64     `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	CardID    string    `json:"card_id"`
	Kind      string    `json:"kind"`
	Visible   bool      `json:"visible"`
	Path      string    `json:"path"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

type AdminStats struct {
	TotalEvents      int64       `json:"total_events"`
	UniqueVisitors   int64       `json:"unique_visitors"`
	CardViews        int64       `json:"card_views"`
	Toggles          int64       `json:"toggles"`
	PortfolioOpens   int64       `json:"portfolio_opens"`
	VisitorsToday    int64       `json:"visitors_today"`
	VisitorsThisWeek int64       `json:"visitors_this_week"`
	RecentEvents     []CardEvent `json:"recent_events"`
}

// Analytics stores card events in sqlite.
type Analytics struct {
	db  *sql.DB
	now func() time.Time
}

func openAnalytics(ctx context.Context, path string) (*Analytics, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	// sqlite serialises writers; one connection also keeps :memory: databases whole.
	db.SetMaxOpenConns(1)

	a := &Analytics{db: db, now: time.Now}
	if err := a.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Analytics) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS card_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hashed_ip TEXT NOT NULL,
		card_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		visible INTEGER NOT NULL DEFAULT 0,
		path TEXT,
		user_agent TEXT,
		timestamp DATETIME NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create card_events table: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS card_events_timestamp ON card_events (timestamp)`)
	if err != nil {
		return fmt.Errorf("create card_events index: %w", err)
	}
	return nil
}

func (a *Analytics) Close() error {
	return a.db.Close()
}

// Record stores ev, stamping it with the current time.
func (a *Analytics) Record(ctx context.Context, ev CardEvent) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO card_events (hashed_ip, card_id, kind, visible, path, user_agent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.HashedIP, ev.CardID, ev.Kind, ev.Visible, ev.Path, ev.UserAgent, a.now().UTC())
	if err != nil {
		return fmt.Errorf("record %s event: %w", ev.Kind, err)
	}
	return nil
}

// Cleanup deletes events older than maxAge and returns how many went.
func (a *Analytics) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := a.db.ExecContext(ctx, `DELETE FROM card_events WHERE timestamp < ?`, a.now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("cleanup card events: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Stats summarises the recorded events.
func (a *Analytics) Stats(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{}
	now := a.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.TotalEvents, `SELECT COUNT(*) FROM card_events`, nil},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM card_events`, nil},
		{&stats.CardViews, `SELECT COUNT(*) FROM card_events WHERE kind = ?`, []any{EventView}},
		{&stats.Toggles, `SELECT COUNT(*) FROM card_events WHERE kind = ?`, []any{EventToggle}},
		{&stats.PortfolioOpens, `SELECT COUNT(*) FROM card_events WHERE kind = ? AND visible = 1`, []any{EventToggle}},
		{&stats.VisitorsToday, `SELECT COUNT(DISTINCT hashed_ip) FROM card_events WHERE timestamp >= ?`, []any{today}},
		{&stats.VisitorsThisWeek, `SELECT COUNT(DISTINCT hashed_ip) FROM card_events WHERE timestamp >= ?`, []any{now.Add(-7 * 24 * time.Hour)}},
	}
	for _, c := range counts {
		if err := a.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	recent, err := a.Recent(ctx, 50)
	if err != nil {
		return nil, err
	}
	stats.RecentEvents = recent
	return stats, nil
}

// Recent returns up to limit events, newest first.
func (a *Analytics) Recent(ctx context.Context, limit int) ([]CardEvent, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, hashed_ip, card_id, kind, visible, path, user_agent, timestamp
		FROM card_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var events []CardEvent
	for rows.Next() {
		var ev CardEvent
		var path, userAgent sql.NullString
		if err := rows.Scan(&ev.ID, &ev.HashedIP, &ev.CardID, &ev.Kind, &ev.Visible, &path, &userAgent, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Path = path.String
		ev.UserAgent = userAgent.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

func generateToken() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate token: ", err)
	}
	return hex.EncodeToString(bytes)
}

// Hash IP address for privacy (consistent per IP within one process)
func hashIP(ip, salt string) string {
	hash := sha256.New()
	hash.Write([]byte(ip + salt))
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

// track records an event for the request in the background. Requests
// carrying DNT: 1 are skipped.
func (s *server) track(c *gin.Context, kind, cardID string, visible bool) {
	if s.analytics == nil || c.GetHeader("DNT") == "1" {
		return
	}
	ev := CardEvent{
		HashedIP:  hashIP(c.ClientIP(), s.salt),
		CardID:    cardID,
		Kind:      kind,
		Visible:   visible,
		Path:      c.Request.URL.Path,
		UserAgent: c.GetHeader("User-Agent"),
	}
	s.tracking.Add(1)
	go func() {
		defer s.tracking.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.analytics.Record(ctx, ev); err != nil {
			log.WithError(err).Warn("Error recording card event")
		}
	}()
}

// waitTracking blocks until every event handed to track is stored.
func (s *server) waitTracking() {
	s.tracking.Wait()
}

func (s *server) cleanupOldEvents(ctx context.Context) {
	if s.analytics == nil {
		return
	}
	n, err := s.analytics.Cleanup(ctx, retention)
	if err != nil {
		log.WithError(err).Error("Error cleaning up old card events")
		return
	}
	if n > 0 {
		log.WithField("removed", n).Info("Privacy cleanup: removed card events older than 12 months")
	}
}

func (s *server) stats(ctx context.Context) (*AdminStats, error) {
	if s.analytics == nil {
		return nil, ErrTrackingDisabled
	}
	return s.analytics.Stats(ctx)
}

// Middleware to check admin authentication
func (s *server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("admin_token")
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			if strings.Contains(c.Request.URL.Path, "/api/") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func credentialsMatch(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// Setup all admin routes
func (s *server) setupAdminRoutes(r *gin.Engine) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title":    "Privacy Policy",
			"tracking": s.analytics != nil,
		})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		username := c.PostForm("username")
		password := c.PostForm("password")

		userOK := credentialsMatch(username, s.cfg.AdminUsername)
		passOK := credentialsMatch(password, s.cfg.AdminPassword)
		if userOK && passOK {
			c.SetCookie("admin_token", s.adminToken, 3600*24, "/admin", "", s.cfg.CookieSecure, true)
			log.WithField("client", hashIP(c.ClientIP(), s.salt)).Info("Admin login successful")
			c.Redirect(http.StatusFound, "/admin/dashboard")
			return
		}

		log.WithField("client", hashIP(c.ClientIP(), s.salt)).Warn("Failed admin login attempt")
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
			"title": "Admin Login",
			"error": "Invalid credentials",
		})
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie("admin_token", "", -1, "/admin", "", s.cfg.CookieSecure, true)
		c.Redirect(http.StatusFound, "/admin/login")
	})

	adminGroup := r.Group("/admin")
	adminGroup.Use(s.adminAuthMiddleware())

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.stats(c.Request.Context())
		if err != nil {
			log.WithError(err).Error("Error loading admin stats")
			c.HTML(http.StatusServiceUnavailable, "error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats":     stats,
			"liveCards": s.cards.Len(),
		})
	})

	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.stats(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.stats(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		body, err := sonic.Marshal(stats)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encode stats"})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=card-stats.json")
		log.WithField("client", hashIP(c.ClientIP(), s.salt)).Info("Admin stats exported")
		c.Data(http.StatusOK, "application/json", body)
	})

	adminGroup.POST("/privacy/cleanup", func(c *gin.Context) {
		if s.analytics == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrTrackingDisabled.Error()})
			return
		}
		n, err := s.analytics.Cleanup(c.Request.Context(), retention)
		if err != nil {
			log.WithError(err).Error("Error cleaning up old card events")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": n})
	})
}

func statusFor(err error) int {
	if errors.Is(err, ErrTrackingDisabled) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
