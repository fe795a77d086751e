package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agrotrace/company-portal/portal-backend/internal/auth"
	"agrotrace/company-portal/portal-backend/internal/batches"
	"agrotrace/company-portal/portal-backend/internal/config"
	"agrotrace/company-portal/portal-backend/internal/database"
	"agrotrace/company-portal/portal-backend/internal/deforestation"
	"agrotrace/company-portal/portal-backend/internal/drawsession"
	"agrotrace/company-portal/portal-backend/internal/exports"
	"agrotrace/company-portal/portal-backend/internal/geosearch"
	"agrotrace/company-portal/portal-backend/internal/lands"
	"agrotrace/company-portal/portal-backend/internal/mapdraw"
	"agrotrace/company-portal/portal-backend/internal/mapview"
	"agrotrace/company-portal/portal-backend/internal/scheduler"
	"agrotrace/company-portal/portal-backend/pkg/geospatial"
	"agrotrace/company-portal/portal-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.Database, logger, cfg.Logging.Level == "debug")
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	mapview.DefaultIcons.Init(mapview.IconConfig{
		IconURL:       cfg.Map.IconURL,
		IconRetinaURL: cfg.Map.IconRetinaURL,
		ShadowURL:     cfg.Map.ShadowURL,
	})

	geocoder, err := newGeocoder(cfg.Geocoding, logger)
	if err != nil {
		logger.Fatal("Failed to create geocoder", zap.Error(err))
	}
	if cache, ok := geocoder.(*geosearch.CachingGeocoder); ok {
		defer cache.Stop()
	}

	var checker deforestation.Checker
	if cfg.Deforestation.URL != "" {
		checker = deforestation.NewClient(deforestation.Config{
			URL:     cfg.Deforestation.URL,
			APIKey:  cfg.Deforestation.APIKey,
			Timeout: cfg.Deforestation.Timeout,
		}, logger)
	} else {
		logger.Warn("Deforestation inference service not configured")
	}

	var store storage.S3Client
	if cfg.Storage.Bucket != "" {
		store, err = storage.NewS3Client(context.Background(), storage.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
		})
		if err != nil {
			logger.Fatal("Failed to create storage client", zap.Error(err))
		}
	}

	// Initialize modules
	landService := lands.NewService(lands.NewRepository(db), geocoder, checker, logger)
	batchService := batches.NewService(batches.NewRepository(db), landService, logger)
	exportService := exports.NewService(batchService, store, cfg.Storage.PresignTTL, logger)

	sessions := drawsession.NewManager(geocoder, drawsession.Options{
		Map:            mapOptions(cfg.Map),
		SearchDelay:    cfg.Geocoding.SearchDelay,
		Icons:          mapview.DefaultIcons,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)
	defer sessions.Close()

	var recheck *scheduler.Manager
	if checker != nil {
		recheck, err = scheduler.NewManager(landService, scheduler.Config{
			Schedule:      cfg.Deforestation.RecheckSchedule,
			BatchSize:     cfg.Deforestation.RecheckBatchSize,
			LookbackYears: cfg.Deforestation.LookbackYears,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create recheck scheduler", zap.Error(err))
		}
		if err := recheck.Start(); err != nil {
			logger.Fatal("Failed to start recheck scheduler", zap.Error(err))
		}
		defer recheck.Stop()
	}

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.Server.AllowedOrigins))

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	api := router.Group("/api/v1", auth.Middleware(verifier, logger))
	{
		lands.NewHandler(landService, logger).RegisterRoutes(api)
		batches.NewHandler(batchService, logger).RegisterRoutes(api)
		exports.NewHandler(exportService, logger).RegisterRoutes(api)
		if geocoder != nil {
			geosearch.NewHandler(geocoder, logger).RegisterRoutes(api)
		}
		drawsession.NewHandler(sessions, logger).RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"status":        "healthy",
			"timestamp":     time.Now(),
			"draw_sessions": sessions.SessionCount(),
		}
		if recheck != nil {
			status["deforestation_recheck"] = recheck.Status()
		}
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// newGeocoder returns nil when geocoding is disabled.
func newGeocoder(cfg config.GeocodingConfig, logger *zap.Logger) (geosearch.Geocoder, error) {
	var provider geosearch.Geocoder
	switch cfg.Provider {
	case "google":
		g, err := geosearch.NewGoogleGeocoder(geosearch.GoogleOptions{
			APIKey: cfg.GoogleAPIKey,
			Region: cfg.Region,
			QPS:    cfg.QPS,
			Limit:  cfg.Limit,
		})
		if err != nil {
			return nil, err
		}
		provider = g
	case "nominatim":
		provider = geosearch.NewNominatimGeocoder(geosearch.NominatimOptions{
			BaseURL:   cfg.NominatimURL,
			UserAgent: cfg.UserAgent,
			QPS:       cfg.QPS,
			Limit:     cfg.Limit,
		}, logger)
	default:
		logger.Warn("Location search disabled")
		return nil, nil
	}

	if cfg.CacheTTL > 0 {
		return geosearch.NewCachingGeocoder(provider, cfg.CacheTTL), nil
	}
	return provider, nil
}

func mapOptions(cfg config.MapConfig) mapdraw.Options {
	opts := mapdraw.Options{
		Padding:       &mapdraw.Padding{X: cfg.PaddingX, Y: cfg.PaddingY},
		DefaultCenter: geospatial.LatLng{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng},
		DefaultZoom:   cfg.DefaultZoom,
	}
	if cfg.CenterMethod == "bounding_box" {
		opts.CenterMethod = mapdraw.CenterBoundingBox
	}
	return opts
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func cors(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := "*"
		if len(allowed) > 0 {
			origin = ""
			for _, o := range allowed {
				if o == c.GetHeader("Origin") {
					origin = o
					break
				}
			}
		}
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
