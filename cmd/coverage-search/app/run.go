package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"github.com/mihai-snyk/coverage-search/apis/search/v1alpha1"
	"github.com/mihai-snyk/coverage-search/pkg/search/algorithms"
	"github.com/mihai-snyk/coverage-search/pkg/search/benchmarks"
	"github.com/mihai-snyk/coverage-search/pkg/search/budget"
	"github.com/mihai-snyk/coverage-search/pkg/search/execution"
	"github.com/mihai-snyk/coverage-search/pkg/search/metrics"
	"github.com/mihai-snyk/coverage-search/pkg/search/storage"
	"github.com/mihai-snyk/coverage-search/pkg/search/util"
)

// Run searches the triangle benchmark as configured by o, prints the
// archive to out and persists it to the configured store.
func Run(ctx context.Context, o *Options, out io.Writer) (storage.ArchiveSnapshot, error) {
	logger := klog.FromContext(ctx)

	c, err := o.Configuration()
	if err != nil {
		return storage.ArchiveSnapshot{}, err
	}

	subject, err := benchmarks.NewTriangle()
	if err != nil {
		return storage.ArchiveSnapshot{}, err
	}
	rng := newRand(c)
	runner := execution.NewCachingRunner(benchmarks.TriangleRunner{}, o.CacheTTL)
	variation := benchmarks.NewVariation(*c.MutationProbability, o.MaxCalls, rng)
	algorithm, err := algorithms.New(c, runner, subject.NewSampler(o.MaxCalls, rng), variation)
	if err != nil {
		return storage.ArchiveSnapshot{}, err
	}

	realClock := clock.RealClock{}
	budgets, err := budget.FromConfiguration(realClock, c.Budgets, func() int {
		return len(algorithm.Manager().CoveredObjectives())
	})
	if err != nil {
		return storage.ArchiveSnapshot{}, err
	}
	termination := budget.NewTermination().WithContext(ctx)
	stop := termination.NotifyOnSignal(os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	progress := util.NewProgressCollector(logger)
	listeners := []algorithms.Listener{metrics.NewRecorder(reg, realClock), progress}
	if o.MetricsBindAddress != "" {
		shutdown := serveMetrics(ctx, o.MetricsBindAddress, reg)
		defer shutdown()
	}

	run := storage.Run{
		ID:               uuid.NewString(),
		Subject:          subject.Name(),
		Algorithm:        algorithm.Name(),
		ObjectiveManager: string(c.ObjectiveManager),
		CreatedAt:        realClock.Now().UTC(),
	}
	logger.Info("Starting search", "run", run.ID, "algorithm", run.Algorithm, "objectiveManager", run.ObjectiveManager)

	a, err := algorithm.Search(ctx, subject, budgets, termination, listeners...)
	if err != nil {
		return storage.ArchiveSnapshot{}, fmt.Errorf("search %s: %w", run.ID, err)
	}
	hits, misses := runner.Stats()
	logger.V(2).Info("Execution cache", "hits", hits, "misses", misses)

	manager := algorithm.Manager()
	snapshot := storage.NewSnapshot(run, a, manager.CoveredObjectives(), manager.UncoveredObjectives())
	if err := save(ctx, o.Store, snapshot); err != nil {
		return snapshot, err
	}

	if o.PlotDir != "" {
		name, err := util.PlotProgressFile(o.PlotDir, progress.Samples(), subject.Name(), algorithm.Name())
		if err != nil {
			return snapshot, fmt.Errorf("plotting progress: %w", err)
		}
		logger.Info("Wrote progress chart", "file", name)
	}

	samples := progress.Samples()
	iterations := 0
	if len(samples) > 0 {
		iterations = samples[len(samples)-1].Iteration
	}
	fmt.Fprintf(out, "run %s: %s\n", run.ID,
		util.Summarize(iterations, len(snapshot.Covered), len(snapshot.Covered)+len(snapshot.Uncovered), len(snapshot.Entries)))
	return snapshot, printEntries(out, snapshot)
}

func newRand(c *v1alpha1.SearchConfiguration) *rand.Rand {
	if c.Seed != nil {
		// Offset the stream from the one the algorithm seeds.
		return rand.New(rand.NewPCG(*c.Seed, ^*c.Seed))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func save(ctx context.Context, location string, snapshot storage.ArchiveSnapshot) error {
	store, err := storage.Open(ctx, location)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(store); err != nil {
			klog.FromContext(ctx).Error(err, "Closing store")
		}
	}()
	if err := store.SaveArchive(ctx, snapshot); err != nil {
		return fmt.Errorf("saving archive of run %s: %w", snapshot.Run.ID, err)
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) func() {
	logger := klog.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Serving metrics", "address", addr)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

func printEntries(out io.Writer, snapshot storage.ArchiveSnapshot) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENCODING\tLENGTH\tOBJECTIVES")
	for _, e := range snapshot.Entries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", e.Encoding, e.Length, strings.Join(e.Objectives, ","))
	}
	if len(snapshot.Uncovered) > 0 {
		fmt.Fprintf(w, "uncovered:\t\t%s\n", strings.Join(snapshot.Uncovered, ","))
	}
	return w.Flush()
}
