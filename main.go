package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tphakala/anomalystream/cmd"
	"github.com/tphakala/anomalystream/internal/buildinfo"
)

// buildDate and version are set at build time with -ldflags "-X main.version=..."
var (
	buildDate string
	version   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cmd.Execute(ctx, os.Args[1:], cmd.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr},
		&buildinfo.Context{Version: version, BuildDate: buildDate})

	stop()
	os.Exit(code)
}
