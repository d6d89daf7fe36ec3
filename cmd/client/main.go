package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/voiceauth/internal/client/cli"
	"github.com/dmitrijs2005/voiceauth/internal/client/config"
	"github.com/dmitrijs2005/voiceauth/internal/flagx"
)

// clientFlags are consumed by config and stripped before the subcommand.
var clientFlags = []string{"-a", "-t", "-k", "-c", "-config", "--config"}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]

	cfg, err := config.LoadConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	app := cli.NewApp(cfg)
	if err := app.Run(ctx, flagx.StripArgs(args, clientFlags)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

}
