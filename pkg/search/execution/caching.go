package execution

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"k8s.io/klog/v2"

	"github.com/mihai-snyk/coverage-search/pkg/search/framework"
)

// Fingerprinter is implemented by encodings whose execution is fully
// determined by their genome.
type Fingerprinter interface {
	Fingerprint() string
}

var _ framework.Runner = &CachingRunner{}

// CachingRunner memoises the results of a deterministic runner by encoding
// fingerprint. Encodings without a fingerprint always run.
type CachingRunner struct {
	runner framework.Runner
	cache  *cache.Cache

	hits   int
	misses int
}

func NewCachingRunner(runner framework.Runner, ttl time.Duration) *CachingRunner {
	return &CachingRunner{
		runner: runner,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (c *CachingRunner) Execute(ctx context.Context, subject framework.Subject, encoding framework.Encoding) (framework.ExecutionResult, error) {
	f, ok := encoding.(Fingerprinter)
	if !ok {
		return c.runner.Execute(ctx, subject, encoding)
	}
	key := subject.Name() + "/" + f.Fingerprint()
	if v, found := c.cache.Get(key); found {
		c.hits++
		klog.FromContext(ctx).V(5).Info("Reusing execution result", "encoding", encoding.ID())
		return v.(framework.ExecutionResult), nil
	}

	result, err := c.runner.Execute(ctx, subject, encoding)
	if err != nil {
		return nil, err
	}
	c.misses++
	c.cache.Set(key, result, cache.DefaultExpiration)
	return result, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *CachingRunner) Stats() (hits, misses int) {
	return c.hits, c.misses
}

func (c *CachingRunner) Flush() {
	c.cache.Flush()
}
