package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"trisenti-backend/internal/analyses"
	"trisenti-backend/internal/inference"
	"trisenti-backend/internal/shared/config"
	"trisenti-backend/internal/shared/metrics"
	"trisenti-backend/internal/shared/server/middleware"
	"trisenti-backend/internal/shared/server/respond"
	"trisenti-backend/internal/shared/storage/db"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	// Dependencies
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory history: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory history: %v", err)
				dbConn.Close()
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var historyRepo analyses.Repo
	if sqlDB != nil {
		historyRepo = &analyses.PGRepo{DB: sqlDB}
	} else {
		historyRepo = analyses.NewMemoryRepo()
	}

	classifier, err := inference.NewClient(cfg.InferenceURL)
	if err != nil {
		return nil, err
	}

	ctrl := &analyses.Controller{
		History:     historyRepo,
		Classifier:  classifier,
		Watch:       analyses.NewBroadcaster(),
		TickPeriod:  cfg.TickPeriod,
		RevealDelay: cfg.RevealDelay,
	}
	analysisHandler := analyses.NewHandler(ctrl)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	analysisHandler.RegisterRoutes(api)

	return r, nil
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
