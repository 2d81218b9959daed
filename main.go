package main

import (
	"context"
	"os"
	"os/signal"

	"k8s.io/klog"

	"github.com/bcaldwell/cardsync/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := commands.NewRootCommand().ExecuteContext(ctx)
	stop()
	klog.Flush()

	if err != nil {
		os.Exit(1)
	}
}
