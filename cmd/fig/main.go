// Spins up the fig server, a Redis-flavored frontend over named ordered maps.

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/nobletooth/fig/pkg/port"
	"github.com/nobletooth/fig/pkg/utils"
)

var (
	printVersion = flag.Bool("print_version", false, "Print the version and exit.")
	stripeCount  = flag.Int("registry_stripe_count", runtime.NumCPU(),
		"The number of lock stripes in the map registry.")
)

func main() {
	flag.Parse()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Fig build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	registry := port.NewRegistry(*stripeCount)
	if err := port.RunRedisServer(ctx, registry); err != nil {
		slog.Error("Fig server stopped.", "err", err)
		os.Exit(1)
	}
}
