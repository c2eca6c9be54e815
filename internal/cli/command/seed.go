package command

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/replicacheck/internal/cli/output"
	"github.com/yndnr/replicacheck/internal/cluster"
	"github.com/yndnr/replicacheck/internal/config"
	"github.com/yndnr/replicacheck/internal/report"
	"github.com/yndnr/replicacheck/internal/storage"
)

var seedKeys = map[string]string{
	"base-dir":      "base_dir",
	"store-dir":     "store_dir",
	"replica":       "replicas",
	"keys":          "seed.keys",
	"key-prefix":    "seed.key_prefix",
	"value-size":    "seed.value_size",
	"apply-timeout": "seed.apply_timeout",
	"tamper":        "seed.tamper",
}

// SeedCommand returns the seed command.
func SeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Build replica stores by replicating a generated dataset through an in-process raft cluster",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base-dir",
				Usage: "Directory receiving one subdirectory per replica",
			},
			&cli.StringFlag{
				Name:  "store-dir",
				Usage: "State machine directory inside each replica directory",
			},
			&cli.StringSliceFlag{
				Name:    "replica",
				Aliases: []string{"r"},
				Usage:   "Replica identifier (repeatable or comma separated)",
			},
			&cli.IntFlag{
				Name:  "keys",
				Usage: "Number of generated keys",
			},
			&cli.StringFlag{
				Name:  "key-prefix",
				Usage: "Prefix of generated keys",
			},
			&cli.IntFlag{
				Name:  "value-size",
				Usage: "Length of generated values in bytes",
			},
			&cli.DurationFlag{
				Name:  "apply-timeout",
				Usage: "Bound on leader election, each apply and replication",
			},
			&cli.StringSliceFlag{
				Name:  "tamper",
				Usage: "Write into one replica after shutdown: REPLICA:KEY=VALUE sets, REPLICA:KEY deletes",
			},
			&cli.BoolFlag{
				Name:  "snapshot",
				Usage: "Snapshot every state machine before shutdown",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show a progress bar on stderr",
			},
		},
		Action: runSeed,
	}
}

// seedView is the rendered outcome of a seeding run.
type seedView struct {
	Leader    string            `json:"leader" yaml:"leader"`
	LastIndex uint64            `json:"last_index" yaml:"last_index"`
	Keys      int               `json:"keys" yaml:"keys"`
	Tampered  int               `json:"tampered" yaml:"tampered"`
	Replicas  []seedReplicaView `json:"replicas" yaml:"replicas"`
}

type seedReplicaView struct {
	ID      string `json:"id" yaml:"id"`
	Path    string `json:"path" yaml:"path"`
	Applied uint64 `json:"applied_index" yaml:"applied_index"`
	Records int    `json:"records" yaml:"records"`
}

func runSeed(c *cli.Context) error {
	cfg, err := loadConfig(c, seedKeys)
	if err != nil {
		return usageError("load config: %v", err)
	}
	if err := config.VerifySeed(cfg); err != nil {
		return usageError("invalid config: %v", err)
	}
	if cfg.Store.Engine != storage.EngineBadger {
		return usageError("seed writes badger stores only, store.engine is %q", cfg.Store.Engine)
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return usageError("%v", err)
	}

	tampers := make([]cluster.Tamper, 0, len(cfg.Seed.Tamper))
	for _, s := range cfg.Seed.Tamper {
		t, err := cluster.ParseTamper(s)
		if err != nil {
			return usageError("%v", err)
		}
		if !slices.Contains(cfg.Replicas, t.Replica) {
			return usageError("tamper %s targets unknown replica %q", t, t.Replica)
		}
		tampers = append(tampers, t)
	}

	log, err := newLogger(c, cfg)
	if err != nil {
		return usageError("create logger: %v", err)
	}

	seedCfg := cluster.SeedConfig{
		BaseDir:      cfg.BaseDir,
		StoreDir:     cfg.StoreDir,
		Replicas:     cfg.Replicas,
		Keys:         cfg.Seed.Keys,
		KeyPrefix:    cfg.Seed.KeyPrefix,
		ValueSize:    cfg.Seed.ValueSize,
		ApplyTimeout: cfg.Seed.ApplyTimeout,
		Snapshot:     c.Bool("snapshot"),
		Tamper:       tampers,
		Badger:       cfg.StoreOptions().Badger,
		Logger:       log.Slog(),
	}

	var bar *output.ProgressBar
	if c.Bool("progress") {
		bar = output.NewProgressBar(c.App.ErrWriter, "seeding", int64(cfg.Seed.Keys))
		last := 0
		seedCfg.Progress = func(applied int) {
			bar.Increment(int64(applied - last))
			last = applied
		}
	}

	res, err := cluster.Seed(c.Context, seedCfg)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Error("seed failed", "base_dir", cfg.BaseDir, "error", err)
		return cli.Exit(fmt.Sprintf("error: %v", err), report.ExitInfrastructure)
	}

	view := seedView{
		Leader:    res.Leader,
		LastIndex: res.LastIndex,
		Keys:      res.Keys,
		Tampered:  res.Tampered,
	}
	for _, id := range cfg.Replicas {
		view.Replicas = append(view.Replicas, seedReplicaView{
			ID:      id,
			Path:    cfg.ReplicaPath(id),
			Applied: res.Applied[id],
			Records: res.Records[id],
		})
	}

	data := any(view)
	if !format.Structured() {
		data = view.Replicas
	}
	if err := output.NewFormatter(format).Format(c.App.Writer, data); err != nil {
		return cli.Exit(fmt.Sprintf("error: render result: %v", err), report.ExitInfrastructure)
	}

	fmt.Fprintf(c.App.ErrWriter, "seeded %s with %s %s (leader %s, last index %s)\n",
		english.Plural(len(cfg.Replicas), "replica", "replicas"),
		humanize.Comma(int64(res.Keys)),
		english.PluralWord(res.Keys, "key", "keys"),
		res.Leader,
		humanize.Comma(int64(res.LastIndex)))
	return nil
}
