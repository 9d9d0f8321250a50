package clicommand

import (
	"fmt"

	"github.com/urfave/cli"
	"github.com/wheelhouse-ci/wheelhouse/internal/pipeline"
)

const validateHelpDescription = `Usage:

   wheelhouse pipeline validate [file] [options...]

Description:

   Parses and validates a pipeline declaration without running anything:
   every step must be well formed, and every {{matrix.*}} placeholder must
   name a declared matrix axis. Reports how many steps the declaration has
   and how many it expands to.

   If no file is given, the declaration is read from stdin when piped, or
   found in the default locations:

   - wheelhouse.yml
   - wheelhouse.yaml
   - .wheelhouse/pipeline.yml
   - .wheelhouse/pipeline.yaml

Example:

   $ wheelhouse pipeline validate
   $ wheelhouse pipeline validate release.yml
   $ ./generate_pipeline.sh | wheelhouse pipeline validate`

type PipelineValidateConfig struct {
	FilePath        string `cli:"arg:0" label:"pipeline file"`
	NoInterpolation bool   `cli:"no-interpolation"`

	// Global flags
	Debug    bool   `cli:"debug"`
	LogLevel string `cli:"log-level"`
	NoColor  bool   `cli:"no-color"`
}

var PipelineValidateCommand = cli.Command{
	Name:        "validate",
	Usage:       "Parses and validates a pipeline declaration",
	Description: validateHelpDescription,
	Flags: append([]cli.Flag{
		cli.BoolFlag{
			Name:   "no-interpolation",
			Usage:  "Skip environment variable interpolation before validating",
			EnvVar: "WHEELHOUSE_PIPELINE_NO_INTERPOLATION",
		},
	}, globalFlags...),
	Action: func(c *cli.Context) {
		cfg := PipelineValidateConfig{}
		loadConfig(c, &cfg)
		l := CreateLogger(&cfg)

		p, src, err := loadPipeline(l, cfg.FilePath, cfg.NoInterpolation)
		if err != nil {
			l.Fatal("%v", err)
		}

		if err := p.Validate(); err != nil {
			l.Fatal("Validation of %s failed: %v", src, err)
		}

		declared := len(p.Steps)
		expanded := 0
		for _, step := range p.Steps {
			cs, ok := step.(*pipeline.CommandStep)
			if !ok || cs.Matrix == nil {
				expanded++
				continue
			}
			expanded += len(cs.Matrix.Assignments())
		}

		l.Info("%s is valid: %d steps declared, %d after matrix expansion", src, declared, expanded)
		fmt.Printf("%d steps declared, %d after matrix expansion\n", declared, expanded)
	},
}
