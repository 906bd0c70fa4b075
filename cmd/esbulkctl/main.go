// Command esbulkctl is a thin demo host that wires an esbulk action and
// worker together against a real Elasticsearch-compatible endpoint,
// reading its configuration from a YAML file (spec.md §6's
// createInstance/createWorkerInstance/beginTransaction/doAction/
// endTransaction/tryResume/doHUP, exercised end to end).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rsyslog/esbulk/internal/config"
	"github.com/rsyslog/esbulk/pkg/esbulk"
)

func main() {
	configPath := flag.String("config", "esbulk.yaml", "path to the action configuration file")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on, empty disables")
	flag.Parse()

	logger := logrus.StandardLogger()

	if err := run(*configPath, *metricsAddr, logger); err != nil {
		logger.WithError(err).Fatal("esbulkctl: fatal error")
	}
}

func run(configPath, metricsAddr string, logger *logrus.Logger) error {
	action, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("esbulkctl: failed to load config: %w", err)
	}
	action.Logger = logger
	defer action.Close()

	if metricsAddr != "" {
		serveMetrics(metricsAddr, action.Stats, logger)
	}

	worker, err := esbulk.NewWorker(action)
	if err != nil {
		return fmt.Errorf("esbulkctl: failed to create worker: %w", err)
	}
	defer worker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			action.HUP()
			logger.Info("esbulkctl: SIGHUP received, error file descriptor closed for reopen")
		}
	}()

	if err := worker.Resume(ctx); err != nil {
		logger.WithError(err).Warn("esbulkctl: initial health probe failed, proceeding anyway")
	}

	return indexStdin(ctx, worker, action, logger)
}

// indexStdin reads one JSON document per line from stdin and indexes
// each as a message, flushing the batch at EOF or signal.
func indexStdin(ctx context.Context, worker *esbulk.Worker, action *esbulk.ActionConfig, logger *logrus.Logger) error {
	worker.BeginTransaction()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return worker.EndTransaction(context.Background())
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		tpl, err := renderLine(line)
		if err != nil {
			logger.WithError(err).Warn("esbulkctl: skipping unparseable line")
			continue
		}

		if _, err := worker.DoAction(ctx, tpl); err != nil {
			logger.WithError(err).Error("esbulkctl: doAction failed")
			if rerr := worker.Resume(ctx); rerr != nil {
				logger.WithError(rerr).Warn("esbulkctl: resume after failure also failed")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("esbulkctl: failed to read stdin: %w", err)
	}

	return worker.EndTransaction(ctx)
}

// renderLine is the stand-in for the host's templating engine
// (esbulk.HostMessage, out of scope per spec.md §1): each stdin line is
// expected to already be the JSON source document, indexed as-is.
func renderLine(line []byte) (esbulk.TemplateSet, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(line, &probe); err != nil {
		return esbulk.TemplateSet{}, fmt.Errorf("not a JSON object: %w", err)
	}
	return esbulk.TemplateSet{Payload: string(line)}, nil
}

func serveMetrics(addr string, stats *esbulk.Stats, logger *logrus.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(stats.Collectors()...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.WithError(err).Error("esbulkctl: metrics server stopped")
		}
	}()
}
