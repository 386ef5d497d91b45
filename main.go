package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"student_control_backend/internal/app"
	"student_control_backend/internal/config"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "rebuild the whole student cache and exit")
	configDir := flag.String("config", "configs", "configuration directory")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg, *configDir+"/config.yaml")

	if *rebuild {
		total, failed, err := application.RebuildAll(context.Background())
		if err != nil {
			log.Fatalf("Cache rebuild failed: %v", err)
		}
		fmt.Printf("cache rebuild done: %d students, %d failed\n", total, failed)
		return
	}

	application.Run()
}
