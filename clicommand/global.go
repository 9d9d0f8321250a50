package clicommand

import (
	"fmt"
	"os"

	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
	"github.com/wheelhouse-ci/wheelhouse/cliconfig"
	"github.com/wheelhouse-ci/wheelhouse/logger"
)

var ConfigFlag = cli.StringFlag{
	Name:   "config",
	Usage:  "Path to a configuration file",
	EnvVar: "WHEELHOUSE_CONFIG_PATH",
}

var DebugFlag = cli.BoolFlag{
	Name:   "debug",
	Usage:  "Enable debug mode (shorthand for --log-level debug)",
	EnvVar: "WHEELHOUSE_DEBUG",
}

var LogLevelFlag = cli.StringFlag{
	Name:   "log-level",
	Value:  "info",
	Usage:  "Set the log level: debug, info, notice, warn, error",
	EnvVar: "WHEELHOUSE_LOG_LEVEL",
}

var NoColorFlag = cli.BoolFlag{
	Name:   "no-color",
	Usage:  "Don't show colors in logging",
	EnvVar: "WHEELHOUSE_NO_COLOR",
}

// globalFlags are appended to every command's flag list.
var globalFlags = []cli.Flag{
	ConfigFlag,
	DebugFlag,
	LogLevelFlag,
	NoColorFlag,
}

// DefaultConfigFilePaths returns the paths tried, in order, when --config is
// not given.
func DefaultConfigFilePaths() []string {
	return []string{
		"wheelhouse.cfg",
		"~/.wheelhouse/config",
	}
}

// loadConfig populates cfg from CLI flags and config files, exiting on error
// (before a logger exists there is nowhere better to report it).
func loadConfig(c *cli.Context, cfg any) {
	loader := cliconfig.Loader{
		CLI:                    c,
		Config:                 cfg,
		DefaultConfigFilePaths: DefaultConfigFilePaths(),
	}
	if err := loader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// CreateLogger builds the logger for a command from the global fields of its
// config struct (Debug, LogLevel, NoColor), looked up by reflection so every
// config struct doesn't have to share an embedded type.
func CreateLogger(cfg any) logger.Logger {
	l := logger.NewTextLogger()

	level := logger.INFO
	if name, err := reflections.GetField(cfg, "LogLevel"); err == nil {
		if nameStr, ok := name.(string); ok && nameStr != "" {
			parsed, err := logger.LevelFromString(nameStr)
			if err != nil {
				l.Fatal("%v", err)
			}
			level = parsed
		}
	}
	if debug, err := reflections.GetField(cfg, "Debug"); err == nil && debug == true {
		level = logger.DEBUG
	}
	l.SetLevel(level)

	if noColor, err := reflections.GetField(cfg, "NoColor"); err == nil && noColor == true {
		if tl, ok := l.(*logger.TextLogger); ok {
			tl.Colors = false
		}
	}

	return l
}
