// Package command provides the replicacheck command definitions.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/replicacheck/internal/config"
	"github.com/yndnr/replicacheck/internal/infra/buildinfo"
	"github.com/yndnr/replicacheck/internal/infra/confloader"
	"github.com/yndnr/replicacheck/internal/report"
	"github.com/yndnr/replicacheck/internal/telemetry/logger"
)

// App creates the CLI application.
//
// Commands report their outcome as a cli.ExitCoder; the caller maps it to
// the process exit status.
func App() *cli.App {
	return &cli.App{
		Name:    "replicacheck",
		Usage:   "Verify that replicated state-machine stores hold identical data",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			VerifyCommand(),
			DumpCommand(),
			SeedCommand(),
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (YAML)",
			EnvVars: []string{"REPLICACHECK_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   config.DefaultOutputFormat,
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: config.DefaultLogLevel,
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: json, text",
			Value: config.DefaultLogFormat,
		},
	}
}

// globalKeys maps global flags to configuration keys.
var globalKeys = map[string]string{
	"output":     "output.format",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// loadConfig builds the configuration from defaults, the config file, the
// environment and the flags the user set. keys maps command flags to
// configuration keys.
func loadConfig(c *cli.Context, keys map[string]string) (*config.Config, error) {
	overrides := make(map[string]any)
	collectOverrides(c, globalKeys, overrides)
	collectOverrides(c, keys, overrides)

	cfg := config.Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// collectOverrides copies the value of every set flag of keys into out.
func collectOverrides(c *cli.Context, keys map[string]string, out map[string]any) {
	for name, key := range keys {
		if c.IsSet(name) {
			out[key] = flagValue(c, name)
		}
	}
}

func flagValue(c *cli.Context, name string) any {
	switch v := c.Value(name).(type) {
	case cli.StringSlice:
		return v.Value()
	default:
		return v
	}
}

// newLogger creates the run logger. Logs go to the application error
// writer so that stdout only carries the report.
func newLogger(c *cli.Context, cfg *config.Config) (logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      c.App.ErrWriter,
		MaskValues:  cfg.Log.MaskValues,
		MaxValueLen: cfg.Log.MaxValueLen,
	})
}

// usageError reports a configuration or invocation error.
func usageError(format string, args ...any) cli.ExitCoder {
	return cli.Exit("error: "+fmt.Sprintf(format, args...), report.ExitUsage)
}
