package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/coffersTech/nanotel/internal/config"
	"github.com/coffersTech/nanotel/internal/engine"
	"github.com/coffersTech/nanotel/internal/logcat"
	"github.com/coffersTech/nanotel/internal/model"
	"github.com/coffersTech/nanotel/internal/runstore"
	"github.com/coffersTech/nanotel/internal/server"
	"github.com/coffersTech/nanotel/internal/storage"
	"github.com/coffersTech/nanotel/pkg/telparse"
)

// paramFlag collects repeated -param name=value flags.
type paramFlag map[string]string

func (p paramFlag) String() string {
	parts := make([]string, 0, len(p))
	for k, v := range p {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (p paramFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("want name=value, got %q", s)
	}
	p[name] = value
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func logcatOptions(cfg *config.Config, format string) (logcat.Options, error) {
	f, err := logcat.ParseFormat(format)
	if err != nil {
		return logcat.Options{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return logcat.Options{}, err
	}
	return logcat.Options{Format: f, Year: cfg.Analysis.Year, Location: loc}, nil
}

func analysisOptions(cfg *config.Config, logger *slog.Logger) (telparse.Options, error) {
	bounds, err := cfg.Bounds()
	if err != nil {
		return telparse.Options{}, err
	}
	bucket, err := cfg.HistogramBucket()
	if err != nil {
		return telparse.Options{}, err
	}
	return telparse.Options{
		Strict:          cfg.Analysis.Strict,
		Bounds:          bounds,
		Logger:          logger,
		HistogramBucket: bucket,
	}, nil
}

// subscription returns the configured subscription, or nil when no operators are
// configured and slots are therefore unchecked.
func subscription(cfg *config.Config) *telparse.Subscription {
	sub := cfg.Subscription
	if len(sub.Operators) == 0 {
		return nil
	}
	return &telparse.Subscription{
		DDSSlot:    sub.DDSSlot,
		VoiceSubID: sub.VoiceSubID,
		Operators:  sub.Operators,
	}
}

// loadRecords reads log files and capture directories into one ordered stream.
func loadRecords(paths []string, opts logcat.Options, logger *slog.Logger) ([]model.LogRecord, error) {
	var recs []model.LogRecord
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			cat, err := storage.OpenCatalog(path, logger)
			if err != nil {
				return nil, err
			}
			rows, err := cat.Read(engine.Filter{})
			cat.Close()
			if err != nil {
				return nil, fmt.Errorf("read captures in %s: %w", path, err)
			}
			recs = append(recs, rows...)
			continue
		}
		rows, err := logcat.Open(path, opts)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rows...)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
	return recs, nil
}

func runAnalyze(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default config.yaml)")
	peer := fs.String("peer", "", "Log file or capture dir of the peer device")
	where := fs.String("where", "", `Record filter applied before analysis, e.g. 'kind:SmsSendRequest OR text:"cid=7"'`)
	format := fs.String("format", "auto", "Log format: auto, threadtime or json")
	strict := fs.Bool("strict", false, "Report missing events as precondition violations")
	save := fs.Bool("save", false, "Record the run in the run history")
	params := paramFlag{}
	fs.Var(params, "param", "Query parameter name=value (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: nanotel analyze [flags] <query> <log file | capture dir>...\n\nQueries: %s\n\n",
			strings.Join(telparse.Queries(), ", "))
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("%w: analyze needs a query and at least one source", errUsage)
	}
	query, sources := fs.Arg(0), fs.Args()[1:]

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	lopts, err := logcatOptions(cfg, *format)
	if err != nil {
		return err
	}
	opts, err := analysisOptions(cfg, logger)
	if err != nil {
		return err
	}
	opts.Strict = opts.Strict || *strict

	records, err := loadRecords(sources, lopts, logger)
	if err != nil {
		return err
	}
	if records, err = engine.FilterRecords(records, *where); err != nil {
		return err
	}
	in := telparse.Input{Records: records, Params: params, Subscription: subscription(cfg)}
	if *peer != "" {
		in.HasPeer = true
		peerRecs, err := loadRecords([]string{*peer}, lopts, logger)
		if err != nil {
			return err
		}
		if in.Peer, err = engine.FilterRecords(peerRecs, *where); err != nil {
			return err
		}
	}

	start := time.Now()
	rep, err := telparse.Run(query, in, opts)
	if err != nil {
		return err
	}
	logger.Info("analysis finished",
		slog.String("query", query),
		slog.Int("records", len(records)),
		slog.Int("peer_records", len(in.Peer)),
		slog.Duration("elapsed", time.Since(start)))

	if *save {
		if err := saveRuns(cfg, query, strings.Join(sources, ","), rep, logger); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	if v := rep.Violation(); v != "" {
		logger.Warn("precondition violation", slog.String("query", query), slog.String("violation", v))
		return errViolation
	}
	return nil
}

func saveRuns(cfg *config.Config, query, source string, rep telparse.Report, logger *slog.Logger) error {
	if cfg.Storage.RunsDB == "" {
		return errors.New("storage.runs_db is not configured")
	}
	store, err := runstore.New(cfg.Storage.RunsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, res := range rep.Results {
		run := runstore.FromSummary(query, source, res.TaxonomyVersion, res.Summary, res.Violation)
		if err := store.Save(context.Background(), run); err != nil {
			return err
		}
		logger.Info("run saved", slog.String("id", run.ID), slog.String("family", run.Family))
	}
	return nil
}

func runPack(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default config.yaml)")
	out := fs.String("out", "", "Capture directory (default storage.capture_dir)")
	format := fs.String("format", "auto", "Log format: auto, threadtime or json")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: pack needs at least one log file", errUsage)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	lopts, err := logcatOptions(cfg, *format)
	if err != nil {
		return err
	}
	dir := *out
	if dir == "" {
		dir = cfg.Storage.CaptureDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	writer, err := storage.NewColumnWriter()
	if err != nil {
		return err
	}
	defer writer.Close()

	mt := engine.NewMemTable()
	for _, path := range fs.Args() {
		recs, err := logcat.Open(path, lopts)
		if err != nil {
			return err
		}
		mt.AppendAll(recs)
		rows := mt.Len()
		file, err := engine.FlushMemTable(mt, dir, writer.WriteSnapshot)
		if err != nil {
			return fmt.Errorf("pack %s: %w", path, err)
		}
		logger.Info("capture written", slog.String("source", path), slog.String("file", file), slog.Int("rows", rows))
	}

	retention, err := cfg.Retention()
	if err != nil {
		return err
	}
	cat, err := storage.OpenCatalog(dir, logger)
	if err != nil {
		return err
	}
	defer cat.Close()
	if _, err := cat.Purge(time.Now(), retention); err != nil {
		return err
	}
	return nil
}

func runServe(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default config.yaml)")
	port := fs.Int("port", 0, "HTTP port (default server.port)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts, err := analysisOptions(cfg, logger)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	var runs *runstore.Store
	if cfg.Storage.RunsDB != "" {
		if runs, err = runstore.New(cfg.Storage.RunsDB); err != nil {
			return err
		}
		defer runs.Close()
	}

	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		APIKeyHashes: cfg.Server.APIKeyHashes,
		Runs:         runs,
		Subscription: subscription(cfg),
		Options:      opts,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (default config.yaml)")
	query := fs.String("query", "", "Only list runs of this query")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.RunsDB == "" {
		return errors.New("storage.runs_db is not configured")
	}
	store, err := runstore.New(cfg.Storage.RunsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.List(context.Background(), *query, *limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

// runHashKey prints the bcrypt hash to put under server.api_key_hashes.
func runHashKey(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: nanotel hashkey <api key>", errUsage)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}
