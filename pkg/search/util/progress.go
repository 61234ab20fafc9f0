package util

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"

	"github.com/mihai-snyk/coverage-search/pkg/search/algorithms"
)

// Sample is the search state after one iteration.
type Sample struct {
	Iteration   int
	Covered     int
	Objectives  int
	ArchiveSize int
	Progress    float64
}

// ProgressCollector records one Sample per completed iteration and logs a
// summary when the search completes.
type ProgressCollector struct {
	logger logr.Logger

	mu        sync.Mutex
	algorithm string
	samples   []Sample
}

func NewProgressCollector(logger logr.Logger) *ProgressCollector {
	return &ProgressCollector{logger: logger}
}

func (p *ProgressCollector) Notify(_ context.Context, event algorithms.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Type {
	case algorithms.SearchStart:
		p.algorithm = event.Algorithm
		p.samples = p.samples[:0]
	case algorithms.InitializeComplete, algorithms.IterationComplete:
		p.samples = append(p.samples, Sample{
			Iteration:   event.Iteration,
			Covered:     event.Covered,
			Objectives:  event.Covered + event.Uncovered,
			ArchiveSize: event.ArchiveSize,
			Progress:    event.Progress,
		})
	case algorithms.SearchComplete:
		p.logger.Info("Search complete", "algorithm", event.Algorithm,
			"summary", Summarize(event.Iteration, event.Covered, event.Covered+event.Uncovered, event.ArchiveSize))
	}
}

// Samples returns a copy of the recorded samples.
func (p *ProgressCollector) Samples() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sample(nil), p.samples...)
}

func (p *ProgressCollector) Algorithm() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.algorithm
}

// Summarize renders a one-line, human readable outcome of a search.
func Summarize(iterations, covered, objectives, archiveSize int) string {
	ratio := 0.0
	if objectives > 0 {
		ratio = math.Round(1000*float64(covered)/float64(objectives)) / 10
	}
	return fmt.Sprintf("covered %s of %s objectives (%s%%) in %s iterations, archive holds %s",
		humanize.Comma(int64(covered)),
		humanize.Comma(int64(objectives)),
		humanize.FtoaWithDigits(ratio, 1),
		humanize.Comma(int64(iterations)),
		humanize.Comma(int64(archiveSize)))
}
