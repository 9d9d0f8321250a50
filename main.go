package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"github.com/wheelhouse-ci/wheelhouse/clicommand"
	"github.com/wheelhouse-ci/wheelhouse/version"
)

var appHelpTemplate = `Usage:

  {{.Name}} <command> [options] [arguments...]

Available commands are:

  {{range .Commands}}{{.Name}}{{with .ShortName}}, {{.}}{{end}}{{ "\t" }}{{.Usage}}
  {{end}}
Use "{{.Name}} <command> --help" for more information about a command.

`

var subcommandHelpTemplate = `Usage:

  {{.Name}} {{if .Flags}}<command>{{end}} [options] [arguments...]

Available commands are:

   {{range .Commands}}{{.Name}}{{with .ShortName}}, {{.}}{{end}}{{ "\t" }}{{.Usage}}
   {{end}}{{if .Flags}}
Options:

{{range .Flags}}   {{.}}
{{end}}{{end}}
`

var commandHelpTemplate = `{{.Description}}

Options:

{{range .Flags}}   {{.}}
{{end}}
`

func printVersion(c *cli.Context) {
	fmt.Fprintf(c.App.Writer, "%s version %s\n", c.App.Name, version.FullVersion())
}

func main() {
	cli.AppHelpTemplate = appHelpTemplate
	cli.CommandHelpTemplate = commandHelpTemplate
	cli.SubcommandHelpTemplate = subcommandHelpTemplate
	cli.VersionPrinter = printVersion

	app := cli.NewApp()
	app.Name = "wheelhouse"
	app.Version = version.Version()
	app.Usage = "Declare, expand and run wheel release pipelines"
	app.Commands = []cli.Command{
		{
			Name:  "pipeline",
			Usage: "Work with pipeline declarations",
			Subcommands: []cli.Command{
				clicommand.PipelineValidateCommand,
				clicommand.PipelineExpandCommand,
				clicommand.PipelineRunCommand,
			},
		},
		{
			Name:  "wheels",
			Usage: "Move built wheels in and out of storage",
			Subcommands: []cli.Command{
				clicommand.WheelsUploadCommand,
				clicommand.WheelsDownloadCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
