package app

import (
	"context"

	notifyApi "bus-tracker/internal/notify/api"
	notifyApp "bus-tracker/internal/notify/app"
	"bus-tracker/internal/notify/consumer"
	"bus-tracker/internal/notify/gateway"
	notifyRepo "bus-tracker/internal/notify/repo"
	"bus-tracker/internal/shared/config"
	"bus-tracker/internal/shared/db"
	"bus-tracker/internal/shared/health"
	"bus-tracker/internal/shared/middleware"
	"bus-tracker/internal/shared/mq"
	"bus-tracker/internal/shared/util"
)

func RunNotificationService(configPath string) {
	log := util.New()
	log.Info("NotificationService", "Starting service initialization...")

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

	push, err := gateway.NewFCM(ctx, &cfg.Push)
	if err != nil {
		log.Fatal("PushGateway", "Failed to initialize FCM", err)
	}
	log.OK("PushGateway", "FCM client ready")

	directory := notifyRepo.NewDirectoryRepo(database)
	relay := notifyApp.NewRelay(
		notifyApp.NewResolver(directory),
		push,
		notifyApp.NewPruner(directory, log),
		cfg.Push.Channel,
		log,
	)

	tripStarts := consumer.NewTripStartConsumer(relay, rmq, log)
	if err := tripStarts.Start(ctx); err != nil {
		log.Fatal("TripStartConsumer", "Failed to start trip start consumer", err)
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret)
	handler := notifyApi.NewHandler(relay, log)

	mux := handler.RegisterRoutes(auth, health.Handler("notification-service", database, rmq))
	serve(log, "notification-service", cfg.Services.NotificationService, mux, cancel)
}
