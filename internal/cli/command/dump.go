package command

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/replicacheck/internal/cli/output"
	"github.com/yndnr/replicacheck/internal/config"
	"github.com/yndnr/replicacheck/internal/report"
	"github.com/yndnr/replicacheck/internal/telemetry/logger"
	"github.com/yndnr/replicacheck/internal/verify"
)

// DumpCommand returns the dump command.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print the dataset of one replica",
		ArgsUsage: "REPLICA",
		Flags:     storeFlags(),
		Action:    runDump,
	}
}

// recordRow is one dumped record.
type recordRow struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

func runDump(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("dump takes exactly one REPLICA argument")
	}

	cfg, err := loadConfig(c, storeKeys)
	if err != nil {
		return usageError("load config: %v", err)
	}
	cfg.Replicas = []string{c.Args().First()}
	cfg.Verify.Baseline = ""
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

	id := cfg.Replicas[0]
	collector := verify.NewCollector(verify.CollectorConfig{Store: cfg.StoreOptions()})
	agg := collector.Collect(logger.WithLogger(c.Context, log), []verify.Replica{
		{ID: verify.ReplicaID(id), Path: cfg.ReplicaPath(id)},
	})

	res := agg.Results()[0]
	if !res.OK() {
		return cli.Exit(fmt.Sprintf("error: %s: %s: %v", id, res.Failure, res.Err), report.ExitInfrastructure)
	}

	records := res.Dataset.Records()
	rows := make([]recordRow, len(records))
	for i, rec := range records {
		rows[i] = recordRow{Key: verify.DisplayBytes(rec.Key), Value: verify.DisplayBytes(rec.Value)}
	}

	if err := output.NewFormatter(format).Format(c.App.Writer, rows); err != nil {
		return cli.Exit(fmt.Sprintf("error: render dataset: %v", err), report.ExitInfrastructure)
	}

	fmt.Fprintf(c.App.ErrWriter, "%s: %s %s, fingerprint %s\n",
		id,
		humanize.Comma(int64(res.Dataset.Len())),
		english.PluralWord(res.Dataset.Len(), "record", "records"),
		res.Dataset.Fingerprint())
	return nil
}
