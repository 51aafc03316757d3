package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xyz-asif/blindmatch/internal/config"
	"github.com/xyz-asif/blindmatch/internal/database"
	"github.com/xyz-asif/blindmatch/internal/features/chat"
	"github.com/xyz-asif/blindmatch/internal/features/matches"
	"github.com/xyz-asif/blindmatch/internal/features/safety"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	"github.com/xyz-asif/blindmatch/internal/pkg/cloudinary"
	idToken "github.com/xyz-asif/blindmatch/internal/pkg/jwt"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
	"github.com/xyz-asif/blindmatch/internal/pkg/moderation"
	"github.com/xyz-asif/blindmatch/internal/pkg/push"
	"github.com/xyz-asif/blindmatch/internal/pkg/ratelimit"
	"github.com/xyz-asif/blindmatch/internal/pkg/response"
)

// App holds what main needs after wiring
type App struct {
	Registry *chat.Registry
	Sweeper  *matches.Sweeper
}

func newNotifier(ctx context.Context, cfg *config.Config) push.Notifier {
	if !cfg.PushEnabled || cfg.FirebaseServiceAccountPath == "" {
		return push.Noop{}
	}
	fcm, err := push.NewFCM(ctx, cfg.FirebaseServiceAccountPath)
	if err != nil {
		logger.Warn("push disabled: %v", err)
		return push.Noop{}
	}
	return fcm
}

func newPhotoStore(cfg *config.Config) *cloudinary.Service {
	if cfg.CloudinaryCloudName == "" {
		logger.Warn("photo storage disabled: CLOUDINARY_CLOUD_NAME not set")
		return nil
	}
	cld, err := cloudinary.NewService(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryUploadFolder)
	if err != nil {
		logger.Warn("photo storage disabled: %v", err)
		return nil
	}
	return cld
}

func SetupRoutes(ctx context.Context, router *gin.Engine, db *database.MongoDB, cfg *config.Config) *App {
	api := router.Group("/api/v1")

	usersRepo := users.NewRepository(db.Database)
	matchesRepo := matches.NewRepository(db.Database)
	safetyRepo := safety.NewRepository(db.Database)
	economy := users.NewEconomy(usersRepo)
	registry := chat.NewRegistry()
	jwtConfig := idToken.DefaultConfig(cfg.JWTSecret, cfg.JWTExpire)
	auth := users.NewAuthMiddleware(usersRepo, jwtConfig)

	// a nil *cloudinary.Service must not leak into the interfaces as non-nil
	var photos users.PhotoStore
	deps := matches.Deps{
		Store:     matchesRepo,
		Directory: usersRepo,
		Blocks:    safetyRepo,
		Economy:   economy,
		Checker:   moderation.NewBasicChecker(),
		Live:      registry,
		Notifier:  newNotifier(ctx, cfg),
	}
	if cld := newPhotoStore(cfg); cld != nil {
		photos = cld
		deps.Photos = cld
	}

	matchService := matches.NewService(deps, matches.RulesFromConfig(cfg))
	safetyService := safety.NewService(safetyRepo, matchService, usersRepo, economy, safety.RulesFromConfig(cfg))

	reportLimiter := ratelimit.New(cfg.ReportRateLimit, cfg.ReportRateWindow)
	reportLimiter.StartCleanup(ctx, cfg.ReportRateWindow)

	wsHandler := chat.NewHandler(chat.NewRelay(registry), matchService, chat.WSConfig{
		WriteTimeout:    cfg.WSWriteTimeout,
		PongTimeout:     cfg.WSPongTimeout,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
		AllowedOrigin:   allowedWSOrigin(cfg.FrontendURL),
	})

	users.RegisterRoutes(api, users.NewHandler(usersRepo, photos, jwtConfig, cfg.IsProduction()), auth)
	matches.RegisterRoutes(api, matches.NewHandler(matchService), auth)
	chat.RegisterRoutes(api, wsHandler, auth)
	safety.RegisterRoutes(api, safety.NewHandler(safetyService), auth,
		ratelimit.UserBasedMiddleware(reportLimiter), safety.RequireModerator(cfg.ModerationToken))

	router.GET("/health", healthHandler(db, registry))

	return &App{
		Registry: registry,
		Sweeper:  matches.NewSweeper(matchService, cfg.ExpirySweepInterval),
	}
}

func allowedWSOrigin(frontend string) string {
	if frontend == "*" {
		return ""
	}
	return frontend
}

// healthHandler reports database reachability and live-connection counts
func healthHandler(db *database.MongoDB, registry *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			logger.Error("health check: database unreachable: %v", err)
			response.ServiceUnavailable(c, "Database unreachable", "DB_UNAVAILABLE")
			return
		}
		response.Success(c, gin.H{
			"status":        "ok",
			"time":          time.Now().Unix(),
			"online":        registry.OnlineCount(),
			"activeMatches": registry.ActiveMatches(),
		})
	}
}
