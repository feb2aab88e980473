package main

import (
	"flag"

	"bus-tracker/internal/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	app.RunNotificationService(*configPath)
}
