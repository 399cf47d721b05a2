// Command sprotoc is a small operator tool around the sproto package:
// pack/unpack raw files through the 0-pack codec, and inspect a
// compiled schema bundle.
package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	runID := uuid.New().String()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()

	app := &cli.App{
		Name:  "sprotoc",
		Usage: "pack, unpack, and inspect sproto messages and schemas",
		Commands: []*cli.Command{
			packCommand(&logger),
			unpackCommand(&logger),
			inspectCommand(&logger),
			dumpProtocolCommand(&logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("sprotoc failed")
		os.Exit(1)
	}
}
