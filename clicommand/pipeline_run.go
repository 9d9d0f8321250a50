package clicommand

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"github.com/wheelhouse-ci/wheelhouse/internal/runner"
)

const runHelpDescription = `Usage:

   wheelhouse pipeline run [file] [options...]

Description:

   Expands a pipeline declaration and executes it locally, one step at a
   time. Command steps whose agent selector is not a subset of this runner's
   tags are skipped with a notice. Block steps prompt for approval on the
   terminal unless --no-gates is given.

Example:

   $ wheelhouse pipeline run release.yml --agent-tags queue=cpu_queue
   $ wheelhouse pipeline run release.yml --no-gates --dry-run`

type PipelineRunConfig struct {
	FilePath        string `cli:"arg:0" label:"pipeline file"`
	AgentTags       string `cli:"agent-tags"`
	NoGates         bool   `cli:"no-gates"`
	DryRun          bool   `cli:"dry-run"`
	Commit          string `cli:"commit"`
	NoInterpolation bool   `cli:"no-interpolation"`

	// Global flags
	Debug    bool   `cli:"debug"`
	LogLevel string `cli:"log-level"`
	NoColor  bool   `cli:"no-color"`
}

var PipelineRunCommand = cli.Command{
	Name:        "run",
	Usage:       "Expands a pipeline declaration and executes it locally",
	Description: runHelpDescription,
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:   "agent-tags",
			Usage:  "This runner's tags, e.g. \"queue=cpu_queue,os=linux\"",
			EnvVar: "WHEELHOUSE_AGENT_TAGS",
		},
		cli.BoolFlag{
			Name:   "no-gates",
			Usage:  "Auto-approve block steps instead of prompting",
			EnvVar: "WHEELHOUSE_NO_GATES",
		},
		cli.BoolFlag{
			Name:   "dry-run",
			Usage:  "Log the commands that would run without executing them",
		},
		cli.StringFlag{
			Name:   "commit",
			Usage:  "The commit under build, exported as WHEELHOUSE_COMMIT",
			EnvVar: "WHEELHOUSE_COMMIT",
		},
		cli.BoolFlag{
			Name:   "no-interpolation",
			Usage:  "Skip environment variable interpolation before running",
			EnvVar: "WHEELHOUSE_PIPELINE_NO_INTERPOLATION",
		},
	}, globalFlags...),
	Action: func(c *cli.Context) {
		cfg := PipelineRunConfig{}
		loadConfig(c, &cfg)
		l := CreateLogger(&cfg)

		tags, err := runner.ParseTags(cfg.AgentTags)
		if err != nil {
			l.Fatal("Parsing --agent-tags: %v", err)
		}

		p, src, err := loadPipeline(l, cfg.FilePath, cfg.NoInterpolation)
		if err != nil {
			l.Fatal("%v", err)
		}

		expanded, err := p.Expand()
		if err != nil {
			l.Fatal("Expanding %s failed: %v", src, err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		r := runner.New(l, runner.Config{
			AgentTags: tags,
			NoGates:   cfg.NoGates,
			DryRun:    cfg.DryRun,
			Commit:    cfg.Commit,
		})
		if err := r.Run(ctx, expanded); err != nil {
			l.Fatal("%v", err)
		}
	},
}
