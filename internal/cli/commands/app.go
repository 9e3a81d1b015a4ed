package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nam4dev/apy-rest2front-sub001/internal/cache"
	"github.com/nam4dev/apy-rest2front-sub001/internal/cli/config"
	"github.com/nam4dev/apy-rest2front-sub001/internal/drafts"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/resource"
	"github.com/nam4dev/apy-rest2front-sub001/internal/orm/schema"
	"github.com/nam4dev/apy-rest2front-sub001/internal/transport"
)

// app holds what the commands of one invocation share. Everything past
// the flags is built lazily so that commands only pay for what they use.
type app struct {
	configFile string
	verbose    bool
	noColor    bool

	cfg      *config.Config
	logger   *zap.Logger
	registry *schema.Registry
	promReg  *prometheus.Registry
	metrics  *transport.Metrics
	cache    cache.Cache
	exec     transport.Executor
	drafts   *drafts.Store

	// confirm asks a yes/no question before destructive actions
	confirm func(message string) (bool, error)
}

func newApp() *app {
	return &app{confirm: surveyConfirm}
}

// errNotInteractive is returned by prompts when stdin is not a terminal
var errNotInteractive = errors.New("cannot prompt for confirmation: stdin is not a terminal, pass --yes")

func surveyConfirm(message string) (bool, error) {
	if !interactive() {
		return false, errNotInteractive
	}
	ok := false
	prompt := &survey.Confirm{Message: message}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// setup loads the configuration and the logger. It runs before every
// command.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{File: a.configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger == nil {
		logger, err := newLogger(cfg, a.verbose)
		if err != nil {
			return err
		}
		a.logger = logger
	}

	if cfg.Metrics.Enabled && a.metrics == nil {
		a.promReg = prometheus.NewRegistry()
		a.metrics = transport.NewMetrics(a.promReg)
	}
	return nil
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// schemas loads the schema registry from the configured file
func (a *app) schemas() (*schema.Registry, error) {
	if a.registry != nil {
		return a.registry, nil
	}
	reg, err := schema.LoadRegistry(a.cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("schemas loaded",
		zap.String("file", a.cfg.SchemaFile),
		zap.Int("resources", reg.Count()),
	)
	a.registry = reg
	return reg, nil
}

// lookup returns the schema of a resource name
func (a *app) lookup(name string) (*schema.Resource, error) {
	reg, err := a.schemas()
	if err != nil {
		return nil, err
	}
	return reg.Get(name)
}

// executor builds the backend client: HTTP with logging, optional
// instrumentation and an optional response cache
func (a *app) executor() (transport.Executor, error) {
	if a.exec != nil {
		return a.exec, nil
	}

	mws := []transport.Middleware{transport.Logged(a.logger)}
	if a.metrics != nil {
		mws = append(mws, transport.Instrumented(a.metrics, a.cfg.Endpoint))
	}

	c, err := cache.New(a.cfg.CacheOptions())
	if err != nil {
		return nil, err
	}
	if c != nil {
		a.cache = c
		mws = append(mws, transport.Cached(c, a.cfg.Cache.TTL, a.logger))
	}

	base := transport.NewHTTPExecutor(transport.HTTPOptions{
		Timeout:  a.cfg.Timeout,
		APIKey:   a.cfg.APIKey,
		Username: a.cfg.Username,
		Password: a.cfg.Password,
	})
	a.exec = transport.Chain(base, mws...)
	return a.exec, nil
}

// resourceOptions wires resources to the configured backend
func (a *app) resourceOptions() (resource.Options, error) {
	exec, err := a.executor()
	if err != nil {
		return resource.Options{}, err
	}
	reg, err := a.schemas()
	if err != nil {
		return resource.Options{}, err
	}
	return resource.Options{
		Endpoint: a.cfg.Endpoint,
		Executor: exec,
		Schemas:  reg,
		Logger:   a.logger,
	}, nil
}

// draftStore opens the draft database
func (a *app) draftStore() (*drafts.Store, error) {
	if a.drafts != nil {
		return a.drafts, nil
	}
	driver, dsn := a.cfg.DraftsSource()
	store, err := drafts.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s drafts: %w", driver, err)
	}
	a.drafts = store
	return store, nil
}

// close reports metrics and releases what the invocation opened
func (a *app) close() {
	if a.promReg != nil && a.logger != nil {
		reportMetrics(a.promReg, a.logger)
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.drafts != nil {
		_ = a.drafts.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// reportMetrics logs the request counters gathered during the invocation
func reportMetrics(g prometheus.Gatherer, logger *zap.Logger) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		if mf.GetName() != "apy_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.Float64("count", m.GetCounter().GetValue())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			logger.Info("requests", fields...)
		}
	}
}

// interactive reports whether stdin is a terminal a prompt can use
func interactive() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
