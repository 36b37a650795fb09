// Command intaked watches a directory for netlist files and loads them into
// the design registry, mirroring each design into Neo4j. It also consumes
// design submissions from NATS and serves a small admin HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/BoardsightAI/boardsight/engine/board"
	"github.com/BoardsightAI/boardsight/engine/feed"
	"github.com/BoardsightAI/boardsight/engine/graph"
	"github.com/BoardsightAI/boardsight/engine/intake"
	"github.com/BoardsightAI/boardsight/engine/profile"
	"github.com/BoardsightAI/boardsight/pkg/fn"
	"github.com/BoardsightAI/boardsight/pkg/mid"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// netlistExts are the file suffixes the watcher picks up.
var netlistExts = []string{".kicad_pcb", ".kicad_mod", ".brd", ".json", ".ckt", ".net"}

func isNetlistFile(name string) bool {
	if name == "" || name[0] == '.' {
		return false
	}
	for _, ext := range netlistExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func main() {
	var (
		dataDir   = flag.String("dir", envOr("BOARDSIGHT_DIR", "/tmp/boardsight-designs"), "directory to watch for netlist files")
		natsURL   = flag.String("nats", envOr("NATS_URL", ""), "NATS server URL; empty disables the consumer and change feed")
		neo4jURL  = flag.String("neo4j", envOr("NEO4J_URL", ""), "Neo4j bolt URL; empty disables the graph mirror")
		neo4jUser = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		profiles  = flag.String("profiles", envOr("BOARDSIGHT_PROFILES", ""), "extra component profiles YAML")
		httpAddr  = flag.String("http", envOr("BOARDSIGHT_HTTP", ":8080"), "admin HTTP listen address")
		interval  = flag.Duration("interval", 10*time.Second, "directory scan interval")
		workers   = flag.Int("workers", 4, "parallel file loads per scan")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(runConfig{
		dataDir:   *dataDir,
		natsURL:   *natsURL,
		neo4jURL:  *neo4jURL,
		neo4jUser: *neo4jUser,
		neo4jPass: *neo4jPass,
		profiles:  *profiles,
		httpAddr:  *httpAddr,
		interval:  *interval,
		workers:   *workers,
	}, logger); err != nil {
		logger.Error("intaked exited with error", "err", err)
		os.Exit(1)
	}
}

type runConfig struct {
	dataDir   string
	natsURL   string
	neo4jURL  string
	neo4jUser string
	neo4jPass string
	profiles  string
	httpAddr  string
	interval  time.Duration
	workers   int
}

func run(cfg runConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := board.NewRegistry()
	lib := profile.NewLibrary()
	if cfg.profiles != "" {
		if err := lib.Load(cfg.profiles); err != nil {
			return err
		}
		logger.Info("loaded component profiles", "path", cfg.profiles, "count", lib.Len())
	}

	var gs *graph.GraphStore
	if cfg.neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.neo4jURL, neo4j.BasicAuth(cfg.neo4jUser, cfg.neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("neo4j verify: %w", err)
		}
		gs = graph.New(driver)
		logger.Info("connected to Neo4j", "url", cfg.neo4jURL)
	}

	// In-process dedup on design fingerprints.
	var mu sync.Mutex
	seen := make(map[string]bool)

	deps := intake.Deps{
		Registry: reg,
		Profiles: lib,
		Graph:    gs,
		SeenF: func(_ context.Context, fp string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if seen[fp] {
				return true, nil
			}
			seen[fp] = true
			return false, nil
		},
		Logger: logger,
	}
	pipeline := intake.NewPipeline(deps)

	if cfg.natsURL != "" {
		nc, err := nats.Connect(cfg.natsURL, nats.Name("intaked"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()

		sub, err := intake.StartConsumer(nc, deps)
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		defer sub.Unsubscribe()
		logger.Info("consuming design submissions", "subject", intake.DesignSubject)

		go feed.New(nc, reg, feed.WithLogger(logger)).Run(ctx)
	}

	srv := adminServer(cfg.httpAddr, reg, logger)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server failed", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return err
	}
	logger.Info("watching for netlist files", "dir", cfg.dataDir, "interval", cfg.interval)

	processed := make(map[string]bool)
	scan := func() {
		batch := collectNew(cfg.dataDir, processed, logger)
		if len(batch) == 0 {
			return
		}
		results := fn.ParMapResult(batch, cfg.workers, func(sub intake.DesignSubmission) fn.Result[string] {
			return pipeline(ctx, sub)
		})
		for i, r := range results {
			key := batch[i].Filename
			if _, err := r.Unwrap(); err != nil {
				if errors.Is(err, intake.ErrDuplicate) {
					logger.Info("skipped duplicate design", "file", key)
					processed[key] = true
					continue
				}
				logger.Warn("design load failed, will retry", "file", key, "err", err)
				continue
			}
			processed[key] = true
			logger.Info("design loaded", "file", key,
				"components", reg.ComponentCount(),
				"connections", reg.ConnectionCount(),
			)
		}
	}

	scan()
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			scan()
		}
	}
}

// collectNew reads the watch directory and returns submissions for files not
// yet processed.
func collectNew(dir string, processed map[string]bool, logger *slog.Logger) []intake.DesignSubmission {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("readdir failed", "err", err)
		return nil
	}
	var batch []intake.DesignSubmission
	for _, e := range entries {
		if e.IsDir() || !isNetlistFile(e.Name()) || processed[e.Name()] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			logger.Warn("read failed", "file", e.Name(), "err", err)
			continue
		}
		name := e.Name()
		batch = append(batch, intake.DesignSubmission{
			Board:       strings.TrimSuffix(name, filepath.Ext(name)),
			Filename:    name,
			Payload:     data,
			SubmittedAt: time.Now().UTC(),
		})
	}
	return batch
}

// adminServer exposes health and registry inspection endpoints.
func adminServer(addr string, reg *board.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /summary", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"components":  reg.ComponentCount(),
			"connections": reg.ConnectionCount(),
		})
	})
	mux.HandleFunc("GET /snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, reg.Snapshot())
	})
	mux.HandleFunc("GET /changes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, reg.RecentChanges(100))
	})

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("intaked"),
	)
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
