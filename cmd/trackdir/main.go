package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"geoindex/internal/geo/gdal"
)

func main() {
	// Cancel in-flight database work and scans on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		in:          os.Stdin,
		out:         os.Stdout,
		interactive: func() bool { return isTerminal(os.Stdin) },
		reader:      gdal.NewReader(),
		reprojector: gdal.NewReprojector(),
	}

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
