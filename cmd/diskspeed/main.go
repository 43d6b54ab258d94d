package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mercury131/ps-disk-speed-tester/pkg/config"
	"github.com/mercury131/ps-disk-speed-tester/pkg/engine"
	"github.com/mercury131/ps-disk-speed-tester/pkg/log"
	"github.com/mercury131/ps-disk-speed-tester/pkg/metrics"
	"github.com/mercury131/ps-disk-speed-tester/pkg/stats"
	"github.com/mercury131/ps-disk-speed-tester/pkg/units"
)

// Flags holds pointers to all supported CLI flags.
type Flags struct {
	ConfigFile  *string
	WriteConfig *string

	Path   *string
	Size   *string
	BS     *string
	Data   *string
	Mode   *string
	Engine *string
	Force  *bool
	Fsync  *bool

	Report      *string
	MetricsAddr *string
	LogFile     *string
	Debug       *bool
}

func SetupFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	f.ConfigFile = fs.String("config", "", "Read settings from this YAML file instead of flags")
	f.WriteConfig = fs.String("write-config", "", "Save the effective settings to this YAML file")

	f.Path = fs.String("path", "", "Destination file to create")
	f.Size = fs.String("size", "", "File size, e.g. 100MB or 2GB (binary units B/KB/MB/GB/TB)")
	f.BS = fs.String("bs", "1MB", "Bytes per write")
	f.Data = fs.String("data", engine.DataRandom, "Chunk contents: 'random' or 'zero'")
	f.Mode = fs.String("mode", engine.ModeSequential, "Write placement: 'seq' or 'rand'")
	f.Engine = fs.String("engine", engine.EngineSync, "Write backend: 'sync' or 'uring' (Linux only)")
	f.Force = fs.Bool("force", false, "Replace the destination if it already exists")
	f.Fsync = fs.Bool("fsync", false, "Flush to stable storage before the clock stops")

	f.Report = fs.String("report", "", "Write the run summary to this JSON file")
	f.MetricsAddr = fs.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	f.LogFile = fs.String("log-file", "", "Append logs to this rotated file instead of stderr")
	f.Debug = fs.Bool("debug", false, "Enable debug logging")
	return f
}

// LoadConfig assembles the run configuration, from the config file if
// one was given and from the flags otherwise.
func (f *Flags) LoadConfig() (*config.Config, error) {
	if *f.ConfigFile != "" {
		return config.Load(*f.ConfigFile)
	}
	if *f.Path == "" {
		return nil, errors.New("-path is required when not using -config")
	}
	if *f.Size == "" {
		return nil, errors.New("-size is required when not using -config")
	}
	return &config.Config{
		Target: *f.Path,
		Size:   *f.Size,
		Settings: config.Settings{
			ChunkSize: *f.BS,
			Data:      *f.Data,
			Mode:      *f.Mode,
			Engine:    *f.Engine,
			Overwrite: *f.Force,
			Fsync:     *f.Fsync,
		},
	}, nil
}

// MaybeWriteConfig saves the effective configuration for reuse with
// -config on a later run.
func (f *Flags) MaybeWriteConfig(cfg *config.Config, logger log.Logger) {
	if *f.WriteConfig == "" {
		return
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		logger.Error(err, "marshal config")
		return
	}
	if err := os.WriteFile(*f.WriteConfig, data, 0644); err != nil {
		logger.Error(err, "write config file")
		return
	}
	logger.Logf("configuration written to %s", *f.WriteConfig)
}

func main() {
	f := SetupFlags(flag.CommandLine)
	flag.Parse()

	if *f.ConfigFile == "" && *f.Path == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := log.New(log.Config{Path: *f.LogFile, Debug: *f.Debug})

	cfg, err := f.LoadConfig()
	if err != nil {
		logger.Error(err, "configuration error")
		os.Exit(1)
	}
	f.MaybeWriteConfig(cfg, logger)

	params, err := cfg.Params()
	if err != nil {
		switch {
		case errors.Is(err, units.ErrFormat), errors.Is(err, units.ErrRange):
			logger.Error(err, "invalid size argument")
		default:
			logger.Error(err, "configuration error")
		}
		os.Exit(1)
	}

	if dir := filepath.Dir(params.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error(err, "create target directory")
			os.Exit(1)
		}
	}

	// SIGINT and SIGTERM abort at the next chunk boundary; the engine
	// closes the file on that path like any other.
	cancel := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(cancel)
	}()
	params.Cancel = cancel

	var m *metrics.Metrics
	if *f.MetricsAddr != "" {
		m = &metrics.Metrics{Namespace: "diskspeed"}
		m.Init()
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: *f.MetricsAddr, Handler: mux}
		go func() {
			logger.Logf("metrics on http://%s/metrics", *f.MetricsAddr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error(err, "metrics server")
			}
		}()
	}

	progress := newProgressPrinter(logger)
	params.Progress = func(p engine.Progress) {
		if m != nil {
			m.OnProgress(p)
		}
		progress.observe(p)
	}

	logger.WithFields(map[string]interface{}{
		"target": params.Path,
		"size":   cfg.Size,
		"mode":   params.Mode,
		"data":   params.Data,
	}).Logf("starting disk speed test")

	res, err := engine.New(logger).Run(params)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrTargetExists):
			logger.Error(err, "target exists, pass -force to replace it")
		case errors.Is(err, engine.ErrCanceled):
			logger.Error(err, "interrupted")
		default:
			logger.Error(err, "run failed")
		}
		os.Exit(1)
	}

	summary, err := stats.Summarize(res.Samples, res.BytesRequested, res.BytesWritten, res.Elapsed)
	if err != nil {
		logger.Error(err, "summarize run")
		os.Exit(1)
	}

	printSummary(res, summary)

	if *f.Report != "" {
		writeReport(*f.Report, res, summary, logger)
	}
}

// progressPrinter logs a line each time another 10% of the planned
// bytes has been written.
type progressPrinter struct {
	logger  log.Logger
	lastPct int
}

func newProgressPrinter(logger log.Logger) *progressPrinter {
	return &progressPrinter{logger: logger, lastPct: -1}
}

func (p *progressPrinter) observe(prog engine.Progress) {
	if prog.BytesTotal <= 0 {
		return
	}
	step := int(prog.BytesWritten*100/prog.BytesTotal) / 10 * 10
	if step <= p.lastPct || step >= 100 {
		return
	}
	p.lastPct = step
	p.logger.Logf("%d%% written, last chunk %.2f MB/s", step, prog.LastMBs)
}

func printSummary(res *engine.Result, s *stats.Summary) {
	fmt.Printf("\n>>> Run Complete <<<\n")
	fmt.Printf("Target:        %s (%s, %s data, %s chunks)\n",
		res.Path, res.Mode, res.Data, units.FormatBytes(int64(res.ChunkSize)))
	fmt.Printf("Total size:    %.2f GB\n", s.SizeGB)
	fmt.Printf("Total time:    %v\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("Average speed: %.2f MB/s\n", s.AvgMBs)
	fmt.Printf("Maximum speed: %.2f MB/s\n", s.MaxMBs)
	fmt.Printf("Minimum speed: %.2f MB/s\n", s.MinMBs)
	fmt.Printf("Median speed:  %.2f MB/s\n", s.MedianMBs)
	fmt.Printf("Chunk latency: p50=%v p99=%v\n", s.P50Latency, s.P99Latency)
	if res.BytesWritten != res.BytesRequested {
		fmt.Printf("Bytes written: %d (%d requested)\n", res.BytesWritten, res.BytesRequested)
	}
}

type report struct {
	Target    string         `json:"target"`
	Mode      string         `json:"mode"`
	Data      string         `json:"data"`
	ChunkSize int            `json:"chunk_size"`
	Summary   *stats.Summary `json:"summary"`
}

func writeReport(path string, res *engine.Result, s *stats.Summary, logger log.Logger) {
	data, err := json.MarshalIndent(report{
		Target:    res.Path,
		Mode:      res.Mode,
		Data:      res.Data,
		ChunkSize: res.ChunkSize,
		Summary:   s,
	}, "", "  ")
	if err != nil {
		logger.Error(err, "marshal report")
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Error(err, "write report")
		return
	}
	logger.Logf("report written to %s", path)
}
