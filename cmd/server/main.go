package main

import (
	"context"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/api"
	"github.com/mkravets/team-pulse/internal/auth"
	"github.com/mkravets/team-pulse/internal/config"
	"github.com/mkravets/team-pulse/internal/db"
	"github.com/mkravets/team-pulse/internal/email"
	"github.com/mkravets/team-pulse/internal/repository"
	"github.com/mkravets/team-pulse/internal/service"
	"github.com/mkravets/team-pulse/internal/storage"
	"github.com/mkravets/team-pulse/pkg/logger"
)

func main() {
	logger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting application")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err = pool.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	logger.Info("database connection established")

	transactor := db.NewPgxTransactor(pool)

	userRepo := repository.NewPgxUserRepository(pool)
	teamRepo := repository.NewPgxTeamRepository(pool)
	membershipRepo := repository.NewPgxMembershipRepository(pool)
	checkInRepo := repository.NewPgxCheckInRepository(pool)
	attachmentRepo := repository.NewPgxAttachmentRepository(pool)
	notificationRepo := repository.NewPgxNotificationRepository(pool)

	var mailer email.Mailer = email.NoopMailer{}
	if cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != "" {
		mailer = email.NewMailgunMailer(cfg.Mailgun.Domain, cfg.Mailgun.APIKey, cfg.Mailgun.Sender)
	}

	blobs := storage.NewDiskStore(cfg.Storage.Root, cfg.Server.BaseURL)

	users := service.NewUserService(transactor).
		WithUserRepo(userRepo).
		WithMailer(mailer).
		WithDashboardURL(cfg.Server.BaseURL)
	teams := service.NewTeamService(transactor).
		WithTeamRepo(teamRepo).
		WithMembershipRepo(membershipRepo)
	checkIns := service.NewCheckInService(transactor).
		WithUserRepo(userRepo).
		WithMembershipRepo(membershipRepo).
		WithCheckInRepo(checkInRepo).
		WithAttachmentRepo(attachmentRepo)
	analytics := service.NewAnalyticsService(transactor).
		WithUserRepo(userRepo).
		WithMembershipRepo(membershipRepo).
		WithCheckInRepo(checkInRepo)
	notifications := service.NewNotificationService(transactor).
		WithNotificationRepo(notificationRepo).
		WithMembershipRepo(membershipRepo)

	healthChecker := api.MustNewHealthChecker(health.Config{
		Name:    "postgres",
		Timeout: 2 * time.Second,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	e := echo.New()

	handler := api.NewHandler(logger).
		WithHealthChecker(healthChecker).
		WithVerifier(auth.NewJWTVerifier(cfg.Auth.TokenSecret)).
		WithBlobStore(blobs).
		WithUserService(users).
		WithTeamService(teams).
		WithCheckInService(checkIns).
		WithAnalyticsService(analytics).
		WithNotificationService(notifications)

	handler.RegisterRoutes(e)

	logger.Info("server starting", zap.String("addr", cfg.Server.Addr))
	if err = e.Start(cfg.Server.Addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
