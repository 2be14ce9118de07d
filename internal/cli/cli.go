package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"webrag/internal/config"
	"webrag/internal/logging"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	if err := run(ctx, argv, os.Stdout); err != nil {
		logging.From(ctx).Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}
	return nil
}

// app carries state shared between the root Before hook and subcommands.
type app struct {
	configPath string
	logLevel   string
	out        io.Writer

	cfg *config.AppConfig
}

func run(ctx context.Context, argv []string, out io.Writer) error {
	a := &app{out: out}

	cmd := &cli.Command{
		Name:  "webrag",
		Usage: "Web search retrieval service with vector memory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to YAML config file (default: ./config.yaml or ~/.config/webrag/config.yaml)",
				Sources:     cli.EnvVars("WEBRAG_CONFIG"),
				Destination: &a.configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error); overrides the config file",
				Sources:     cli.EnvVars("WEBRAG_LOG_LEVEL"),
				Destination: &a.logLevel,
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			serveCommand(a),
			scraperCommand(a),
			ingestCommand(a),
			tuiCommand(a),
		},
	}

	return cmd.Run(ctx, argv)
}

// before loads the configuration and installs the configured logger in ctx.
func (a *app) before(ctx context.Context, _ *cli.Command) (context.Context, error) {
	var (
		cfg  *config.AppConfig
		path = a.configPath
		err  error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return ctx, goerr.Wrap(err, "failed to load config")
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	logger := logging.New(cfg.LogLevel, os.Stderr)
	logging.SetDefault(logger)
	logger.Debug("config loaded", "path", path)
	return logging.With(ctx, logger), nil
}
