package app

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/component-base/featuregate"
	logsapi "k8s.io/component-base/logs/api/v1"
	"k8s.io/utils/ptr"

	"github.com/mihai-snyk/coverage-search/apis/search/v1alpha1"
	"github.com/mihai-snyk/coverage-search/pkg/search/storage"
)

// Options holds the flags of the run command. Flags that are set override
// the configuration file.
type Options struct {
	ConfigFile       string
	Algorithm        string
	ObjectiveManager string
	Seed             uint64
	MaxEvaluations   int32
	MaxCalls         int
	CacheTTL         time.Duration

	PlotDir            string
	Store              string
	MetricsBindAddress string

	Logs *logsapi.LoggingConfiguration

	seedSet bool
}

func NewOptions() *Options {
	return &Options{
		MaxCalls: 3,
		CacheTTL: 5 * time.Minute,
		Store:    storage.DefaultLocation,
		Logs:     logsapi.NewLoggingConfiguration(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", o.ConfigFile, "Path to a SearchConfiguration file. Defaults apply when empty.")
	fs.StringVar(&o.Algorithm, "algorithm", o.Algorithm, fmt.Sprintf("Override the algorithm, one of %v.", algorithmNames()))
	fs.StringVar(&o.ObjectiveManager, "objective-manager", o.ObjectiveManager, "Override the objective manager.")
	fs.Uint64Var(&o.Seed, "seed", o.Seed, "Override the random seed.")
	fs.Int32Var(&o.MaxEvaluations, "max-evaluations", o.MaxEvaluations, "Override the evaluation budget.")
	fs.IntVar(&o.MaxCalls, "max-calls", o.MaxCalls, "Maximum number of calls per test case.")
	fs.DurationVar(&o.CacheTTL, "cache-ttl", o.CacheTTL, "How long execution results are memoised.")
	fs.StringVar(&o.PlotDir, "plot", o.PlotDir, "Directory to write the coverage progress chart to.")
	addStoreFlag(fs, &o.Store)
	fs.StringVar(&o.MetricsBindAddress, "metrics-bind-address", o.MetricsBindAddress, "Serve prometheus metrics on this address while searching.")
	logsapi.AddFlags(o.Logs, fs)
}

// Complete records which overrides were set on fs.
func (o *Options) Complete(fs *pflag.FlagSet) {
	o.seedSet = fs.Changed("seed")
}

// Validate checks the flags that do not end up in the configuration.
func (o *Options) Validate() error {
	var errs field.ErrorList
	if o.MaxCalls <= 0 {
		errs = append(errs, field.Invalid(field.NewPath("max-calls"), o.MaxCalls, "must be positive"))
	}
	if o.CacheTTL <= 0 {
		errs = append(errs, field.Invalid(field.NewPath("cache-ttl"), o.CacheTTL.String(), "must be positive"))
	}
	if o.MaxEvaluations < 0 {
		errs = append(errs, field.Invalid(field.NewPath("max-evaluations"), o.MaxEvaluations, "must not be negative"))
	}
	return errs.ToAggregate()
}

// ApplyLogging validates the logging flags and configures klog.
func (o *Options) ApplyLogging() error {
	gate := featuregate.NewFeatureGate()
	if err := logsapi.AddFeatureGates(gate); err != nil {
		return err
	}
	return logsapi.ValidateAndApply(o.Logs, gate)
}

// Configuration loads the configuration file, applies overrides and
// validates the result.
func (o *Options) Configuration() (*v1alpha1.SearchConfiguration, error) {
	var c *v1alpha1.SearchConfiguration
	if o.ConfigFile != "" {
		var err error
		if c, err = v1alpha1.LoadFile(o.ConfigFile); err != nil {
			return nil, err
		}
	} else {
		c = &v1alpha1.SearchConfiguration{}
		v1alpha1.SetDefaults(c)
	}

	if o.Algorithm != "" {
		c.Algorithm = v1alpha1.AlgorithmName(o.Algorithm)
	}
	if o.ObjectiveManager != "" {
		c.ObjectiveManager = v1alpha1.ObjectiveManagerName(o.ObjectiveManager)
	}
	if o.seedSet {
		c.Seed = ptr.To(o.Seed)
	}
	if o.MaxEvaluations > 0 {
		c.Budgets.MaxEvaluations = ptr.To(o.MaxEvaluations)
	}

	if errs := v1alpha1.Validate(c); len(errs) > 0 {
		return nil, fmt.Errorf("invalid search configuration: %w", errs.ToAggregate())
	}
	return c, nil
}

func algorithmNames() []v1alpha1.AlgorithmName {
	return []v1alpha1.AlgorithmName{
		v1alpha1.AlgorithmRandom,
		v1alpha1.AlgorithmMOSA,
		v1alpha1.AlgorithmNSGAII,
		v1alpha1.AlgorithmPCSEA,
		v1alpha1.AlgorithmRVEA,
	}
}
