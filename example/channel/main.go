package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/VitalFlow"
)

func main() {
	flow, err := vitalflow.Conf("../../data/vitalflow.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, messages, closeMessages := vitalflow.NewChannelTransport("fanout", 32)

	done := make(chan struct{})
	go func() {
		defer close(done)
		fanoutWorker("ward-display", messages)
	}()

	err = flow.Run(ctx, vitalflow.DeliverTransport(transport))
	closeMessages()
	<-done
	if err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, messages <-chan *vitalflow.Message) {
	for msg := range messages {
		fmt.Printf("[%s] %s %d bytes at %s\n", name, msg.ID, len(msg.Body), time.Now().Format(time.RFC3339))
	}
}
