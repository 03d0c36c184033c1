package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/swhite/businesscard/internal/card"
)

const cardCookie = "card_id"

type server struct {
	cfg        Config
	cards      *card.Registry
	res        *Resources
	analytics  *Analytics
	adminToken string
	salt       string

	tracking sync.WaitGroup
}

func newServer(cfg Config, analytics *Analytics) *server {
	return &server{
		cfg:        cfg,
		cards:      card.NewRegistry(cfg.CardIdleTTL),
		res:        newResources(language.English),
		analytics:  analytics,
		adminToken: generateToken(),
		salt:       generateToken(),
	}
}

// CardView is what the card templates render.
type CardView struct {
	Profile
	Label    string
	Visible  bool
	Projects []card.Project
}

// cardDocument is the JSON form of a card.
type cardDocument struct {
	Visible  bool           `json:"visible"`
	Label    string         `json:"label"`
	Projects []card.Project `json:"projects,omitempty"`
}

// portfolioFor returns the projects a card in state v exposes.
func portfolioFor(v card.Visibility) []card.Project {
	switch v {
	case card.Visible:
		return card.Projects()
	default:
		return nil
	}
}

func (s *server) cardView(snap card.Snapshot) (CardView, error) {
	profile, err := s.res.profile()
	if err != nil {
		return CardView{}, err
	}
	return CardView{
		Profile:  profile,
		Label:    snap.Label,
		Visible:  snap.Visible(),
		Projects: portfolioFor(snap.Visibility),
	}, nil
}

func documentFor(snap card.Snapshot) cardDocument {
	return cardDocument{
		Visible:  snap.Visible(),
		Label:    snap.Label,
		Projects: portfolioFor(snap.Visibility),
	}
}

func (s *server) cardID(c *gin.Context) string {
	id, err := c.Cookie(cardCookie)
	if err != nil {
		return ""
	}
	return id
}

func (s *server) keepCard(c *gin.Context, id string) {
	maxAge := 0
	if s.cfg.CardIdleTTL > 0 {
		maxAge = int(s.cfg.CardIdleTTL / time.Second)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cardCookie, id, maxAge, "/", "", s.cfg.CookieSecure, true)
}

func (s *server) renderError(c *gin.Context, err error) {
	log.WithError(err).Error("Error rendering card")
	c.HTML(http.StatusInternalServerError, "error.html", gin.H{
		"error": "Sorry, the card could not be displayed.",
	})
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.LoadHTMLGlob("templates/*")

	r.Static("/images", "./images")
	r.Static("/static", "./static")

	// Home page: the whole card
	r.GET("/", func(c *gin.Context) {
		snap := s.cards.Open(s.cardID(c))
		s.keepCard(c, snap.ID)

		view, err := s.cardView(snap)
		if err != nil {
			s.renderError(c, err)
			return
		}
		s.track(c, EventView, snap.ID, snap.Visible())
		c.HTML(http.StatusOK, "index.html", view)
	})

	// Toggle button. HTMX requests get the portfolio fragment back;
	// plain form posts are redirected to the card.
	r.POST("/card/toggle", func(c *gin.Context) {
		snap := s.cards.Toggle(s.cardID(c))
		s.keepCard(c, snap.ID)
		s.track(c, EventToggle, snap.ID, snap.Visible())

		if c.GetHeader("HX-Request") != "true" {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		view, err := s.cardView(snap)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.HTML(http.StatusOK, "portfolio.html", view)
	})

	api := r.Group("/api")
	api.GET("/card", func(c *gin.Context) {
		snap := s.cards.Open(s.cardID(c))
		s.keepCard(c, snap.ID)
		c.JSON(http.StatusOK, documentFor(snap))
	})
	api.POST("/card/toggle", func(c *gin.Context) {
		snap := s.cards.Toggle(s.cardID(c))
		s.keepCard(c, snap.ID)
		s.track(c, EventToggle, snap.ID, snap.Visible())
		c.JSON(http.StatusOK, documentFor(snap))
	})
	api.GET("/projects", func(c *gin.Context) {
		c.JSON(http.StatusOK, card.Projects())
	})
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.setupAdminRoutes(r)
	return r
}

// housekeeping tears down idle cards every minute and prunes old
// analytics once a day, until ctx is done.
func (s *server) housekeeping(ctx context.Context) {
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()
	prune := time.NewTicker(24 * time.Hour)
	defer prune.Stop()

	s.cleanupOldEvents(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n := s.cards.Sweep(); n > 0 {
				log.WithField("cards", n).Debug("Tore down idle cards")
			}
		case <-prune.C:
			s.cleanupOldEvents(ctx)
		}
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	gin.SetMode(cfg.GinMode)
	if err := setupLogging(cfg.LogLevel); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var analytics *Analytics
	if cfg.TrackingEnabled {
		analytics, err = openAnalytics(ctx, cfg.AnalyticsDB)
		if err != nil {
			log.Fatal(err)
		}
		defer analytics.Close()
		log.Info("Privacy: card analytics enabled with hashed IP addresses")
	}

	s := newServer(cfg, analytics)
	log.Info("Admin access available at: /admin/login")
	if gin.Mode() == gin.DebugMode {
		log.Infof("Admin token (dev only): %s", s.adminToken)
	}
	go s.housekeeping(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Shutdown")
		}
	}()

	log.WithField("addr", srv.Addr).Info("Business card listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	// In-flight requests are drained; let their events land before the
	// deferred analytics.Close.
	<-shutdown
	s.waitTracking()
}
