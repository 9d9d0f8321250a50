package clicommand

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

const expandHelpDescription = `Usage:

   wheelhouse pipeline expand [file] [options...]

Description:

   Interpolates environment variables into a pipeline declaration, expands
   every build matrix into concrete steps, and prints the result. The output
   has no matrices and no {{matrix.*}} placeholders left, and is itself a
   valid declaration.

Example:

   $ wheelhouse pipeline expand release.yml
   $ wheelhouse pipeline expand release.yml --format json
   $ WHEELHOUSE_COMMIT=HEAD wheelhouse pipeline expand`

type PipelineExpandConfig struct {
	FilePath        string `cli:"arg:0" label:"pipeline file"`
	Format          string `cli:"format"`
	NoInterpolation bool   `cli:"no-interpolation"`

	// Global flags
	Debug    bool   `cli:"debug"`
	LogLevel string `cli:"log-level"`
	NoColor  bool   `cli:"no-color"`
}

var PipelineExpandCommand = cli.Command{
	Name:        "expand",
	Usage:       "Expands a pipeline declaration's matrices into concrete steps",
	Description: expandHelpDescription,
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:   "format",
			Value:  "yaml",
			Usage:  "Output format: yaml or json",
			EnvVar: "WHEELHOUSE_PIPELINE_FORMAT",
		},
		cli.BoolFlag{
			Name:   "no-interpolation",
			Usage:  "Skip environment variable interpolation before expanding",
			EnvVar: "WHEELHOUSE_PIPELINE_NO_INTERPOLATION",
		},
	}, globalFlags...),
	Action: func(c *cli.Context) {
		cfg := PipelineExpandConfig{}
		loadConfig(c, &cfg)
		l := CreateLogger(&cfg)

		p, src, err := loadPipeline(l, cfg.FilePath, cfg.NoInterpolation)
		if err != nil {
			l.Fatal("%v", err)
		}

		expanded, err := p.Expand()
		if err != nil {
			l.Fatal("Expanding %s failed: %v", src, err)
		}

		switch cfg.Format {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(expanded); err != nil {
				l.Fatal("Marshaling expanded pipeline: %v", err)
			}
			enc.Close()

		case "json":
			out, err := json.MarshalIndent(expanded, "", "  ")
			if err != nil {
				l.Fatal("Marshaling expanded pipeline: %v", err)
			}
			fmt.Printf("%s\n", out)

		default:
			l.Fatal("Unknown output format %q, want yaml or json", cfg.Format)
		}
	},
}
