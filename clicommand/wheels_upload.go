package clicommand

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"github.com/wheelhouse-ci/wheelhouse/internal/artifact"
)

const wheelsUploadHelpDescription = `Usage:

   wheelhouse wheels upload <directory> [options...]

Description:

   Uploads a directory of built wheels to the object store, recursively,
   preserving relative paths. Objects are keyed by the commit they were
   built from: s3://bucket/prefix/<commit>/<relative path>.

   Credentials come from WHEELHOUSE_S3_ACCESS_KEY_ID and
   WHEELHOUSE_S3_SECRET_ACCESS_KEY if set, and the standard AWS SDK chain
   (environment, shared profile, instance profile) otherwise.

Example:

   $ wheelhouse wheels upload artifacts/dist \
       --destination s3://my-wheels/nightly --commit $WHEELHOUSE_COMMIT`

type WheelsUploadConfig struct {
	Directory   string `cli:"arg:0" label:"wheel directory" validate:"required"`
	Destination string `cli:"destination" validate:"required"`
	Commit      string `cli:"commit" validate:"required"`

	// Global flags
	Debug    bool   `cli:"debug"`
	LogLevel string `cli:"log-level"`
	NoColor  bool   `cli:"no-color"`
}

var WheelsUploadCommand = cli.Command{
	Name:        "upload",
	Usage:       "Uploads a directory of wheels to the store, keyed by commit",
	Description: wheelsUploadHelpDescription,
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:   "destination",
			Usage:  "The wheel store location, e.g. s3://my-wheels/nightly",
			EnvVar: "WHEELHOUSE_WHEEL_DESTINATION",
		},
		cli.StringFlag{
			Name:   "commit",
			Usage:  "The commit the wheels were built from",
			EnvVar: "WHEELHOUSE_COMMIT",
		},
	}, globalFlags...),
	Action: func(c *cli.Context) {
		cfg := WheelsUploadConfig{}
		loadConfig(c, &cfg)
		l := CreateLogger(&cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		uploader, err := artifact.NewUploader(ctx, l, artifact.UploaderConfig{
			Destination: cfg.Destination,
			Commit:      cfg.Commit,
		})
		if err != nil {
			l.Fatal("%v", err)
		}
		if err := uploader.Upload(ctx, cfg.Directory); err != nil {
			l.Fatal("%v", err)
		}
	},
}
