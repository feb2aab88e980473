package app

import (
	"context"

	adminApi "bus-tracker/internal/admin/api"
	adminApp "bus-tracker/internal/admin/app"
	adminRepo "bus-tracker/internal/admin/repo"
	"bus-tracker/internal/progress"
	"bus-tracker/internal/shared/config"
	"bus-tracker/internal/shared/db"
	"bus-tracker/internal/shared/health"
	"bus-tracker/internal/shared/middleware"
	"bus-tracker/internal/shared/mq"
	"bus-tracker/internal/shared/util"
	trackingApi "bus-tracker/internal/tracking/api"
	trackingApp "bus-tracker/internal/tracking/app"
	"bus-tracker/internal/tracking/filter"
	trackingRepo "bus-tracker/internal/tracking/repo"
	"bus-tracker/internal/tracking/store"
)

func RunTrackingService(configPath string) {
	log := util.New()
	log.Info("TrackingService", "Starting service initialization...")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal("Config", "Failed to load configuration", err)
	}
	log.OK("Config", "Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.ConnectToDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("Database", "Failed to connect to database", err)
	}
	defer database.Close()
	log.OK("Database", "Connected successfully")

	rmq, err := mq.ConnectToRMQ(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal("RabbitMQ", "Failed to connect to RabbitMQ", err)
	}
	defer rmq.Close()
	if err := mq.DeclareTopology(rmq.Channel()); err != nil {
		log.Fatal("RabbitMQ", "Failed to declare topology", err)
	}
	log.OK("RabbitMQ", "Connected successfully")

	publisher := mq.NewPublisher(rmq)
	repo := trackingRepo.NewTrackingRepo(database)

	locations := store.New(log,
		store.WithRepository(repo),
		store.WithBroker(publisher),
	)
	if _, err := locations.ReleaseOrphaned(ctx); err != nil {
		log.Error("LocationStore", "Failed to release records left tracking by a previous run", err)
	}
	sessions := trackingApp.NewSessionController(locations, log,
		trackingApp.WithSessionRepository(repo),
		trackingApp.WithBroker(publisher),
		trackingApp.WithFilter(filter.New(cfg.Tracking.MinDistanceMeters, cfg.Tracking.MinInterval)),
		trackingApp.WithIdleTimeout(cfg.Tracking.IdleTimeout),
	)
	go sessions.RunReaper(ctx, cfg.Tracking.ReapInterval)

	progressService := progress.NewService(
		progress.NewEngine(cfg.Tracking.ArrivalRadiusMeters),
		progress.NewStopRepo(database),
		locations,
		log,
	)

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret)
	handler := trackingApi.NewHandler(sessions, locations, progressService, auth, log)

	admin := adminApi.NewHandler(adminApp.NewAdminService(adminRepo.NewAdminRepo(database), locations), auth, log)

	mux := handler.RegisterRoutes(health.Handler("tracking-service", database, rmq), admin.Mount)
	serve(log, "tracking-service", cfg.Services.TrackingService, mux, cancel)
}
