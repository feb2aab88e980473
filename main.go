package main

import (
	"flag"
	"fmt"
	"os"

	"bus-tracker/internal/app"
)

func main() {
	service := flag.String("service", "", "Service to run: tracking|notification")
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	// Allow service to be specified via environment variable
	if *service == "" {
		*service = os.Getenv("SERVICE")
	}

	switch *service {
	case "tracking":
		app.RunTrackingService(*configPath)
	case "notification":
		app.RunNotificationService(*configPath)
	default:
		fmt.Println("Usage: bus-tracker -service=[tracking|notification] [-config=config.yaml]")
		fmt.Println("   or: SERVICE=tracking bus-tracker")
		os.Exit(1)
	}
}
