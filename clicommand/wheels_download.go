package clicommand

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"github.com/wheelhouse-ci/wheelhouse/internal/artifact"
)

const wheelsDownloadHelpDescription = `Usage:

   wheelhouse wheels download <directory> [options...]

Description:

   Fetches every wheel stored for a commit into a local directory, mirroring
   the object keys as relative paths.

Example:

   $ wheelhouse wheels download dist \
       --destination s3://my-wheels/nightly --commit 8d970ac`

type WheelsDownloadConfig struct {
	Directory   string `cli:"arg:0" label:"target directory" validate:"required"`
	Destination string `cli:"destination" validate:"required"`
	Commit      string `cli:"commit" validate:"required"`

	// Global flags
	Debug    bool   `cli:"debug"`
	LogLevel string `cli:"log-level"`
	NoColor  bool   `cli:"no-color"`
}

var WheelsDownloadCommand = cli.Command{
	Name:        "download",
	Usage:       "Downloads a commit's wheels from the store",
	Description: wheelsDownloadHelpDescription,
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:   "destination",
			Usage:  "The wheel store location, e.g. s3://my-wheels/nightly",
			EnvVar: "WHEELHOUSE_WHEEL_DESTINATION",
		},
		cli.StringFlag{
			Name:   "commit",
			Usage:  "The commit whose wheels to fetch",
			EnvVar: "WHEELHOUSE_COMMIT",
		},
	}, globalFlags...),
	Action: func(c *cli.Context) {
		cfg := WheelsDownloadConfig{}
		loadConfig(c, &cfg)
		l := CreateLogger(&cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		downloader, err := artifact.NewDownloader(ctx, l, artifact.DownloaderConfig{
			Destination: cfg.Destination,
			Commit:      cfg.Commit,
		})
		if err != nil {
			l.Fatal("%v", err)
		}
		if err := downloader.Download(ctx, cfg.Directory); err != nil {
			l.Fatal("%v", err)
		}
	},
}
