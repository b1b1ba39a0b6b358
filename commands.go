package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	fileconvcli "github.com/sammcj/mcp-fileconv/internal/cli"
	"github.com/sammcj/mcp-fileconv/internal/conversion"
	"github.com/sammcj/mcp-fileconv/internal/job"
	"github.com/sammcj/mcp-fileconv/internal/tools/capabilities"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Print results as JSON",
}

func newRunner(cmd *cli.Command, logger *logrus.Logger) (*fileconvcli.Runner, error) {
	if err := bootstrap(logger, false); err != nil {
		return nil, err
	}
	output := fileconvcli.OutputText
	if cmd.Bool("json") {
		output = fileconvcli.OutputJSON
	}
	return fileconvcli.NewRunner(logger, output), nil
}

func commands(logger *logrus.Logger) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "version",
			Usage: "Print version information",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fmt.Printf("%s version %s\n", appName, Version)
				fmt.Printf("Commit: %s\n", Commit)
				fmt.Printf("Built: %s\n", BuildDate)
				return nil
			},
		},
		{
			Name:  "capabilities",
			Usage: "Probe optional backends and show which tier each PDF operation would use",
			Flags: []cli.Flag{jsonFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				runner, err := newRunner(cmd, logger)
				if err != nil {
					return err
				}
				svc, err := conversion.Default()
				if err != nil {
					return err
				}
				return runner.Capabilities(capabilities.Describe(svc))
			},
		},
		{
			Name:      "convert",
			Usage:     "Convert a file to another format in the same family",
			ArgsUsage: "<file> <format>",
			Flags: []cli.Flag{
				jsonFlag,
				&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for the output (default: next to the input)"},
				&cli.StringFlag{Name: "custom-filename", Usage: "Output file name; the target extension is applied"},
				&cli.StringFlag{Name: "quality", Usage: "JPEG quality for image output: low, medium or high"},
				&cli.StringFlag{Name: "bitrate", Usage: "Audio bitrate, e.g. 192k"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() != 2 {
					return fmt.Errorf("usage: %s convert <file> <format>", appName)
				}
				runner, err := newRunner(cmd, logger)
				if err != nil {
					return err
				}

				path, err := filepath.Abs(cmd.Args().Get(0))
				if err != nil {
					return err
				}
				params := map[string]any{
					"file_path":     path,
					"output_format": cmd.Args().Get(1),
				}
				if err := addPathFlag(cmd, params, "output-dir", "output_dir"); err != nil {
					return err
				}
				for _, flag := range []string{"custom-filename", "quality", "bitrate"} {
					if v := cmd.String(flag); v != "" {
						params[strings.ReplaceAll(flag, "-", "_")] = v
					}
				}
				return runner.Execute(ctx, "convert_file", params)
			},
		},
		{
			Name:      "pdf",
			Usage:     "Run a PDF operation: " + strings.Join(operationNames(), ", "),
			ArgsUsage: "<operation> <file>...",
			Flags: []cli.Flag{
				jsonFlag,
				&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for the outputs (default: next to the first input)"},
				&cli.StringSliceFlag{Name: "option", Usage: "Operation option as key=value, repeatable (e.g. --option page_ranges=1-3)"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.Args().Len() < 2 {
					return fmt.Errorf("usage: %s pdf <operation> <file>...", appName)
				}
				opName := cmd.Args().First()
				if op, ok := job.ParseOperation(opName); !ok || op == job.OpConvert {
					return fmt.Errorf("unknown operation %q%s", opName, fileconvcli.Suggest(opName, operationNames()))
				}

				options, err := parseOptions(cmd.StringSlice("option"))
				if err != nil {
					return err
				}

				var paths []any
				for _, arg := range cmd.Args().Tail() {
					path, err := filepath.Abs(arg)
					if err != nil {
						return err
					}
					paths = append(paths, path)
				}

				runner, err := newRunner(cmd, logger)
				if err != nil {
					return err
				}
				params := map[string]any{
					"operation":  opName,
					"file_paths": paths,
					"options":    options,
				}
				if err := addPathFlag(cmd, params, "output-dir", "output_dir"); err != nil {
					return err
				}
				return runner.Execute(ctx, "pdf_operation", params)
			},
		},
		{
			Name:  "cli",
			Usage: "Run any registered tool directly",
			Commands: []*cli.Command{
				{
					Name:  "list",
					Usage: "List available tools",
					Flags: []cli.Flag{jsonFlag},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						runner, err := newRunner(cmd, logger)
						if err != nil {
							return err
						}
						return runner.ListTools()
					},
				},
				{
					Name:      "help",
					Usage:     "Show a tool's parameters",
					ArgsUsage: "<tool>",
					Flags:     []cli.Flag{jsonFlag},
					Action: func(ctx context.Context, cmd *cli.Command) error {
						runner, err := newRunner(cmd, logger)
						if err != nil {
							return err
						}
						return runner.HelpTool(cmd.Args().First())
					},
				},
				{
					Name:            "run",
					Usage:           "Run a tool with --key=value flags or a JSON object",
					ArgsUsage:       "<tool> [args...]",
					SkipFlagParsing: true,
					Action: func(ctx context.Context, cmd *cli.Command) error {
						if cmd.Args().Len() == 0 {
							return fmt.Errorf("usage: %s cli run <tool> [args...]", appName)
						}
						runner, err := newRunner(cmd, logger)
						if err != nil {
							return err
						}
						return runner.RunTool(ctx, cmd.Args().First(), cmd.Args().Tail())
					},
				},
			},
		},
	}
}

func operationNames() []string {
	names := make([]string, len(job.PDFOperations))
	for i, op := range job.PDFOperations {
		names[i] = string(op)
	}
	return names
}

// parseOptions turns repeated key=value flags into a tool options object
func parseOptions(pairs []string) (map[string]any, error) {
	options := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid option %q, expected key=value", pair)
		}
		options[key] = value
	}
	return options, nil
}

// addPathFlag copies a path flag into params as an absolute path
func addPathFlag(cmd *cli.Command, params map[string]any, flag, param string) error {
	v := cmd.String(flag)
	if v == "" {
		return nil
	}
	abs, err := filepath.Abs(v)
	if err != nil {
		return err
	}
	params[param] = abs
	return nil
}
