// Command demoserver starts the a11yscan demo site: a small shop whose pages
// carry deliberate accessibility problems and can be switched to repaired
// versions from /demo/control.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/raysh454/a11yscan/internal/demoserver"
	"github.com/raysh454/a11yscan/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()
	cfg.Logger = logging.NewStdoutLogger("demoserver")

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := demoserver.NewDemoServer(cfg).Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
