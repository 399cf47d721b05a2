package main

import (
	"fmt"
	"os"

	"github.com/hollowquill/sproto"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func loadSchema(logger *zerolog.Logger, path string) (*sproto.Schema, error) {
	bundle, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	schema, err := sproto.Load(bundle)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("schema", path).Int("types", len(schema.Types())).
		Int("protocols", len(schema.Protocols())).Msg("schema loaded")
	return schema, nil
}

func inspectCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "print a type's fields from a compiled schema bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "schema", Required: true, Usage: "compiled bundle file"},
			&cli.StringFlag{Name: "type", Required: true, Usage: "type name to print"},
		},
		Action: func(c *cli.Context) error {
			schema, err := loadSchema(logger, c.String("schema"))
			if err != nil {
				return err
			}
			defer schema.Release()

			t := schema.TypeByName(c.String("type"))
			if t == nil {
				return fmt.Errorf("inspect: no such type %q", c.String("type"))
			}
			logger.Info().Str("type", t.Name).Bool("dense", t.Dense()).Int("max_n", t.MaxN()).Msg("type")
			for _, f := range t.Fields {
				ev := logger.Info().Int("tag", f.Tag).Str("name", f.Name).Str("kind", f.Kind.String())
				if f.SubType != nil {
					ev = ev.Str("subtype", f.SubType.Name)
				}
				if f.Key >= 0 {
					ev = ev.Int("key", f.Key)
				}
				ev.Msg("field")
			}
			return nil
		},
	}
}

func dumpProtocolCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "dump-protocol",
		Usage: "print every protocol in a compiled schema bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "schema", Required: true, Usage: "compiled bundle file"},
		},
		Action: func(c *cli.Context) error {
			schema, err := loadSchema(logger, c.String("schema"))
			if err != nil {
				return err
			}
			defer schema.Release()

			for _, p := range schema.Protocols() {
				ev := logger.Info().Int("tag", p.Tag).Str("name", p.Name).Bool("confirm", p.Confirm)
				if p.Request != nil {
					ev = ev.Str("request", p.Request.Name)
				}
				if p.Response != nil {
					ev = ev.Str("response", p.Response.Name)
				}
				ev.Msg("protocol")
			}
			return nil
		},
	}
}
