package command

import (
	"fmt"
	"maps"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/replicacheck/internal/cli/output"
	"github.com/yndnr/replicacheck/internal/config"
	"github.com/yndnr/replicacheck/internal/report"
	"github.com/yndnr/replicacheck/internal/telemetry/logger"
	"github.com/yndnr/replicacheck/internal/telemetry/metric"
	"github.com/yndnr/replicacheck/internal/verify"
)

// storeFlags locate and open replica stores. Shared by verify and dump.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "base-dir",
			Usage: "Directory holding one subdirectory per replica",
		},
		&cli.StringFlag{
			Name:  "store-dir",
			Usage: "State machine directory inside each replica directory",
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Store engine: badger, bolt, leveldb",
		},
		&cli.DurationFlag{
			Name:  "open-timeout",
			Usage: "Bound on opening one replica store (0 disables)",
		},
		&cli.BoolFlag{
			Name:  "mask-values",
			Usage: "Log value lengths instead of record values",
		},
	}
}

var storeKeys = map[string]string{
	"base-dir":     "base_dir",
	"store-dir":    "store_dir",
	"engine":       "store.engine",
	"open-timeout": "store.open_timeout",
	"mask-values":  "log.mask_values",
}

var verifyKeys = merge(storeKeys, map[string]string{
	"replica":      "replicas",
	"baseline":     "verify.baseline",
	"concurrency":  "verify.concurrency",
	"scan-rate":    "verify.scan_rate",
	"report-file":  "output.report_file",
	"metrics-file": "output.metrics_file",
})

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Read every replica store and compare it with the baseline",
		Description: "Exit status: 0 identical, 1 divergence, 2 infrastructure failure,\n" +
			"3 inconclusive (fewer than two replicas readable), 64 usage error.",
		Flags: append(storeFlags(),
			&cli.StringSliceFlag{
				Name:    "replica",
				Aliases: []string{"r"},
				Usage:   "Replica identifier (repeatable or comma separated)",
			},
			&cli.StringFlag{
				Name:  "baseline",
				Usage: "Replica the others are compared with (default: first listed)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Replicas read in parallel (0 reads all at once)",
			},
			&cli.IntFlag{
				Name:  "scan-rate",
				Usage: "Records read per second per replica (0 is unlimited)",
			},
			&cli.StringFlag{
				Name:  "report-file",
				Usage: "Also write the report as JSON to this file",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write run metrics in Prometheus text format to this file",
			},
		),
		Action: runVerify,
	}
}

func runVerify(c *cli.Context) error {
	cfg, err := loadConfig(c, verifyKeys)
	if err != nil {
		return usageError("load config: %v", err)
	}
	if err := config.Verify(cfg); err != nil {
		return usageError("invalid config: %v", err)
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return usageError("%v", err)
	}

	log, err := newLogger(c, cfg)
	if err != nil {
		return usageError("create logger: %v", err)
	}

	replicas := make([]verify.Replica, len(cfg.Replicas))
	for i, id := range cfg.Replicas {
		replicas[i] = verify.Replica{ID: verify.ReplicaID(id), Path: cfg.ReplicaPath(id)}
	}

	metrics := metric.NewRegistry()
	collector := verify.NewCollector(verify.CollectorConfig{
		Store:       cfg.StoreOptions(),
		Concurrency: cfg.Verify.Concurrency,
		ScanRate:    cfg.Verify.ScanRate,
		Metrics:     metrics,
	})
	comparator := verify.NewComparator(verify.ReplicaID(cfg.Verify.Baseline), metrics)

	log.Info("verification started",
		"base_dir", cfg.BaseDir,
		"replicas", cfg.Replicas,
		"engine", cfg.Store.Engine)

	ctx := logger.WithLogger(c.Context, log)
	rep := verify.NewVerifier(collector, comparator).Run(ctx, replicas)

	emitter := report.NewEmitter(report.Options{
		Format:     format,
		Out:        c.App.Writer,
		Summary:    c.App.ErrWriter,
		ReportFile: cfg.Output.ReportFile,
	})
	code, err := emitter.Emit(rep)
	if err != nil {
		log.Error("report output failed", "run_id", rep.RunID, "error", err)
		return cli.Exit(fmt.Sprintf("error: %v", err), report.ExitInfrastructure)
	}

	if cfg.Output.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			log.Error("metrics output failed", "path", cfg.Output.MetricsFile, "error", err)
			return cli.Exit(fmt.Sprintf("error: %v", err), report.ExitInfrastructure)
		}
	}

	log.Info("verification finished",
		"run_id", rep.RunID,
		"verdict", string(rep.Verdict),
		"exit_code", code)

	if code != report.ExitPass {
		return cli.Exit("", code)
	}
	return nil
}

func merge(ms ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range ms {
		maps.Copy(out, m)
	}
	return out
}
