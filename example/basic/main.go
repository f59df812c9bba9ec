package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/VitalFlow"
)

func main() {
	flow, err := vitalflow.Conf("../../data/vitalflow.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil {
		log.Fatalf("simulation exited: %v", err)
	}
}
