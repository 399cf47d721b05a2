package main

import (
	"fmt"

	"github.com/hollowquill/sproto"
	"github.com/hollowquill/sproto/wire"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func packCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "pack",
		Usage: "0-pack one or more files",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "in", Required: true, Usage: "input file (repeatable)"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output directory"},
			&cli.IntFlag{Name: "workers", Value: 4, Usage: "max files packed concurrently"},
		},
		Action: func(c *cli.Context) error {
			inputs := c.StringSlice("in")
			logger.Info().Int("files", len(inputs)).Msg("packing")
			return runFiles(inputs, c.String("out"), c.Int("workers"), logger, packFile)
		},
	}
}

// packFile packs src and prepends the original length so unpackFile
// can size its destination buffer without a side-channel. It uses
// Pack's two-pass contract: an undersized (here, empty) probe call
// reports the exact packed size on ErrBufferTooSmall, which sizes the
// real allocation for the second call.
func packFile(src []byte) ([]byte, error) {
	size, err := sproto.Pack(src, nil)
	if err != nil && !sproto.IsKind(err, sproto.ErrBufferTooSmall) {
		return nil, fmt.Errorf("pack: %w", err)
	}
	scratch := make([]byte, size)
	n, err := sproto.Pack(src, scratch)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	out := make([]byte, wire.SizeofU32+n)
	wire.PutUint32(out, uint32(len(src)))
	copy(out[wire.SizeofU32:], scratch[:n])
	return out, nil
}
