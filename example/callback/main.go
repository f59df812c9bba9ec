package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/VitalFlow/pkg/vitalflow"
)

func main() {
	flow, err := vitalflow.Conf("../../data/vitalflow.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, msg *vitalflow.Message) error {
		if msg.Properties["priority"] == "high" {
			fmt.Printf("ALERT id=%s body=%s\n", msg.ID, msg.Body)
		}
		return nil
	}

	err = flow.
		Generate(vitalflow.GenerateWithAnomalyRate(0.2)).
		Run(ctx, vitalflow.DeliverCallback("stdout", callback))
	if err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
