package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

type testConfig struct {
	FilePath    string   `cli:"arg:0"`
	Destination string   `cli:"destination" validate:"required"`
	Tags        []string `cli:"tags" normalize:"list"`
	DryRun      bool     `cli:"dry-run"`
	Retries     int      `cli:"retries"`
}

func testFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "config"},
		cli.StringFlag{Name: "destination", EnvVar: "TEST_DESTINATION"},
		cli.StringSliceFlag{Name: "tags"},
		cli.BoolFlag{Name: "dry-run"},
		cli.IntFlag{Name: "retries", Value: 3},
	}
}

// runLoader runs Load inside a real command action, the same way the
// clicommand package uses it.
func runLoader(t *testing.T, cfg any, args ...string) error {
	t.Helper()

	var loadErr error
	app := cli.NewApp()
	app.Name = "wheelhouse"
	app.Commands = []cli.Command{{
		Name:  "frobnicate",
		Flags: testFlags(),
		Action: func(c *cli.Context) {
			l := Loader{CLI: c, Config: cfg}
			loadErr = l.Load()
		},
	}}

	err := app.Run(append([]string{"wheelhouse", "frobnicate"}, args...))
	require.NoError(t, err)
	return loadErr
}

func TestLoaderLoadsFromFlagsAndArgs(t *testing.T) {
	var cfg testConfig
	err := runLoader(t, &cfg,
		"--destination", "s3://wheels/nightly",
		"--tags", "queue=cpu_queue, os=linux",
		"--dry-run",
		"--retries", "5",
		"dist")

	assert.NoError(t, err)
	assert.Equal(t, "dist", cfg.FilePath)
	assert.Equal(t, "s3://wheels/nightly", cfg.Destination)
	assert.Equal(t, []string{"queue=cpu_queue", "os=linux"}, cfg.Tags)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 5, cfg.Retries)
}

func TestLoaderReadsFlagEnvVar(t *testing.T) {
	t.Setenv("TEST_DESTINATION", "s3://wheels/from-env")

	var cfg testConfig
	err := runLoader(t, &cfg)

	assert.NoError(t, err)
	assert.Equal(t, "s3://wheels/from-env", cfg.Destination)
}

func TestLoaderLoadsFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wheelhouse.cfg")
	content := "destination=s3://wheels/from-file\nretries=7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var cfg testConfig
	err := runLoader(t, &cfg, "--config", path)

	assert.NoError(t, err)
	assert.Equal(t, "s3://wheels/from-file", cfg.Destination)
	assert.Equal(t, 7, cfg.Retries)
}

func TestLoaderFlagOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wheelhouse.cfg")
	require.NoError(t, os.WriteFile(path, []byte("destination=s3://wheels/from-file\n"), 0o600))

	var cfg testConfig
	err := runLoader(t, &cfg, "--config", path, "--destination", "s3://wheels/from-flag")

	assert.NoError(t, err)
	assert.Equal(t, "s3://wheels/from-flag", cfg.Destination)
}

func TestLoaderMissingConfigFile(t *testing.T) {
	var cfg testConfig
	err := runLoader(t, &cfg, "--config", "/nonexistent/wheelhouse.cfg")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "could not be found")
}

func TestLoaderRequiredValidation(t *testing.T) {
	var cfg testConfig
	err := runLoader(t, &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing destination.")
	assert.Contains(t, err.Error(), "wheelhouse frobnicate --help")
}
