// Command grasshopper runs the strategy executor over scripts discovered on
// disk.
package main

import (
	"context"
	"flag"
	"os"
	"sort"

	"github.com/cr0sh/grasshopper/config"
	"github.com/cr0sh/grasshopper/errs"
	"github.com/cr0sh/grasshopper/internal/engine"
	"github.com/cr0sh/grasshopper/internal/engine/store"
	"github.com/cr0sh/grasshopper/internal/host"
	"github.com/cr0sh/grasshopper/internal/observability"
	"github.com/cr0sh/grasshopper/internal/strategy"
	"github.com/cr0sh/grasshopper/internal/strategy/js"

	// Adapters register their request signers.
	_ "github.com/cr0sh/grasshopper/internal/adapters/binance"
	_ "github.com/cr0sh/grasshopper/internal/adapters/upbit"
)

const defaultConfigPath = "config/app.yaml"

// catalog merges natively registered strategies with JavaScript modules.
type catalog struct {
	registry *strategy.Registry
	loader   *js.Loader
}

func (c *catalog) Names() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, name := range c.registry.Names() {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, name := range c.loader.Names() {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *catalog) Resolve(name string) (engine.StrategyFunc, bool) {
	if fn, ok := c.registry.Resolve(name); ok {
		return fn, true
	}
	return c.loader.Resolve(name)
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the configuration file")
	flag.Parse()

	logger := observability.NewZerologLogger(os.Stderr)
	observability.SetLogger(logger)

	cfg, fromFile, err := config.Load(*configPath)
	if err != nil {
		logger.Error("cannot load configuration", observability.F("error", err.Error()))
		os.Exit(1)
	}
	if !fromFile {
		logger.Info("configuration file not found, using defaults",
			observability.F("path", *configPath))
	}

	metrics := observability.NewPrometheusMetrics()
	observability.SetMetrics(metrics)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				logger.Error("metrics server stopped", observability.F("error", err.Error()))
			}
		}()
	}

	loader, err := js.NewLoader(cfg.ScriptsDir)
	if err != nil {
		logger.Error("cannot create strategy loader", observability.F("error", err.Error()))
		os.Exit(1)
	}
	strategies := &catalog{registry: strategy.NewRegistry(), loader: loader}

	credentials := make(map[string]host.Credentials, len(cfg.Credentials))
	for suffix, creds := range cfg.Credentials {
		credentials[suffix] = host.Credentials{APIKey: creds.APIKey, APISecret: creds.APISecret}
	}
	hostCfg := host.Config{
		HTTPTimeout: cfg.Transport.Timeout,
		LocalAddrs:  cfg.Transport.LocalAddrs,
		QueueSize:   cfg.Transport.QueueSize,
		HostRPS:     cfg.Transport.HostRPS,
		HostBurst:   cfg.Transport.HostBurst,
		Credentials: credentials,
	}

	for {
		if err := loader.Refresh(); err != nil {
			logger.Error("cannot load strategy scripts", observability.F("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("strategies discovered",
			observability.F("count", len(strategies.Names())))

		runtime := host.NewRuntime(hostCfg, strategies)
		runtime.InstallSignalHandler()

		executor := engine.New(runtime, store.New(), strategies.Resolve)
		if err := executor.Startup(); err != nil {
			logger.Error("startup failed", observability.F("error", err.Error()))
			runtime.Close()
			os.Exit(1)
		}

		interrupt, err := executor.Run(context.Background())
		if err != nil {
			logger.Error("event loop failed", observability.F("error", err.Error()))
		}
		executor.ClearStrategies()
		runtime.Close()

		if interrupt == errs.InterruptRestart {
			logger.Info("restart requested, reloading strategies")
			continue
		}
		logger.Info("runtime stopped", observability.F("interrupt", string(interrupt)))
		return
	}
}
