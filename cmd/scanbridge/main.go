// Command scanbridge reads barcode detection frames as JSON lines, tracks them
// and asks Lua listeners or HTTP clients how to present every barcode.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LdDl/scanbridge/internal/platform/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("scanbridge: %v", err)
	}
	log.SetPrefix("[SCANBRIDGE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.Default()); err != nil {
		log.Fatalf("scanbridge: %v", err)
	}
}
