package main

import (
	"fmt"

	"github.com/hollowquill/sproto"
	"github.com/hollowquill/sproto/wire"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func unpackCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "unpack",
		Usage: "reverse a previous sprotoc pack",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "in", Required: true, Usage: "input file (repeatable)"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output directory"},
			&cli.IntFlag{Name: "workers", Value: 4, Usage: "max files unpacked concurrently"},
		},
		Action: func(c *cli.Context) error {
			inputs := c.StringSlice("in")
			logger.Info().Int("files", len(inputs)).Msg("unpacking")
			return runFiles(inputs, c.String("out"), c.Int("workers"), logger, unpackFile)
		},
	}
}

func unpackFile(src []byte) ([]byte, error) {
	if len(src) < wire.SizeofU32 {
		return nil, fmt.Errorf("unpack: file too short to carry a length header")
	}
	origLen := wire.Uint32(src)
	out := make([]byte, origLen)
	if _, err := sproto.Unpack(src[wire.SizeofU32:], out); err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	return out, nil
}
