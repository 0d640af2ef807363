package main

import (
	"context"
	"embed"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the CLI. Slice flags are not split on commas so values like 310,5 survive.
func newApp() *cli.App {
	return &cli.App{
		Name:                      "ucs",
		Usage:                     "UCS index asset dependency and recalculation engine",
		DisableSliceFlagSeparator: true,
		Commands: []*cli.Command{
			serveCommand(),
			recalcCommand(),
			planCommand(),
			registryCommand(),
			auditCommand(),
		},
	}
}
