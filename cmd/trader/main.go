package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/engine"
	"main/internal/ingest"
	"main/internal/mdg"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/schema"
	"main/internal/store"
	"main/internal/strategies"
	"main/internal/strategy"
)

func main() {
	if err := run(); err != nil {
		log.Printf("trader: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	fillInterval := flag.Duration("sim-fill-interval", time.Second, "Fill pump interval for the simulated gateway")
	metricsInterval := flag.Duration("metrics-interval", time.Minute, "Metrics snapshot log interval (0=disable)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   *pyroscopeAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	gateway := engine.NewSimGateway(engine.SimGatewayConfig{Session: "SIM"})
	metrics := obs.NewMetrics()

	cfg := engine.Config{
		QueueCapacity: loaded.QueueCapacity,
		Contracts:     loaded.Contracts,
		Gateway:       gateway,
		Metrics:       metrics,
	}

	var db *store.Store
	if loaded.Database.Enabled {
		db, err = store.New(store.Option{
			Host:       loaded.Database.Host,
			Port:       loaded.Database.Port,
			User:       loaded.Database.User,
			Password:   loaded.Database.Password,
			Database:   loaded.Database.Database,
			SSLMode:    loaded.Database.SSLMode,
			Params:     loaded.Database.Params,
			ConnString: loaded.Database.ConnString,
		})
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		cfg.Bars = db
		cfg.Store = db
		cfg.Recorder = db
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}
	gateway.OnOrder(eng.ProcessOrder)
	gateway.OnTrade(eng.ProcessTrade)
	eng.OnStrategyEvent(func(data strategy.Data) {
		logs.Infof("[%s] pos=%v", data.Name, data.Variables["pos_data"])
	})

	for _, factory := range []func() strategy.Logic{strategies.NewTrend, strategies.NewTurtle} {
		if err := eng.RegisterClass(factory); err != nil {
			return err
		}
	}
	for _, spec := range loaded.Strategies {
		if err := eng.AddStrategy(spec.Class, spec.Name, spec.VTSymbols, spec.Setting); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	stopFeed, err := startFeed(ctx, loaded, eng)
	if err != nil {
		eng.Close()
		wg.Wait()
		return err
	}
	defer stopFeed()

	for _, spec := range loaded.Strategies {
		if err := eng.InitStrategy(spec.Name); err != nil {
			return err
		}
		if !spec.AutoStart {
			continue
		}
		if err := eng.StartStrategy(spec.Name); err != nil {
			return err
		}
	}

	if *fillInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pumpFills(ctx, gateway, *fillInterval)
		}()
	}
	if *metricsInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logMetrics(ctx, metrics, *metricsInterval)
		}()
	}

	<-ctx.Done()

	for _, spec := range loaded.Strategies {
		if err := eng.StopStrategy(spec.Name); err != nil {
			logs.Errorf("stop %s, err: %+v", spec.Name, err)
		}
	}
	// Feed producers stop publishing before the queue closes.
	stopFeed()
	eng.Close()
	wg.Wait()
	return nil
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return defaultLoaded()
	}
	return ops.Load(path)
}

// defaultLoaded is the batteries-included session: one simulated contract,
// one trend instance, synthetic ticks.
func defaultLoaded() (ops.Loaded, error) {
	return ops.Resolve(ops.FileConfig{
		Contracts: []ops.ContractConfig{{
			Symbol:    "TEST-USD",
			Exchange:  string(schema.ExchangeLocal),
			PriceTick: 0.01,
			Size:      1,
		}},
		Strategies: []ops.StrategyConfig{{
			Class:     "Trend",
			Name:      "trend-test",
			VTSymbols: []string{"TEST-USD.LOCAL"},
		}},
		Feed: ops.FeedConfig{Source: ops.FeedSynthetic},
	})
}

// startFeed wires the configured market data source into the engine and
// returns its shutdown hook.
func startFeed(ctx context.Context, loaded ops.Loaded, eng *engine.Engine) (func(), error) {
	switch loaded.Feed.Source {
	case ops.FeedBinance:
		feed := ingest.NewBinanceFeed(ctx)
		if err := feed.StartWebsocket(ctx); err != nil {
			return nil, err
		}
		for _, vt := range loaded.Contracts.Keys() {
			symbol, exchange := vt.Split()
			if exchange != schema.ExchangeBinance {
				continue
			}
			if err := feed.Subscribe(ctx, symbol); err != nil {
				feed.Close()
				return nil, err
			}
		}
		unsubscribe := feed.Observe(ctx, eng.ProcessTick)
		var once sync.Once
		return func() {
			once.Do(func() {
				unsubscribe()
				feed.Close()
			})
		}, nil

	default:
		generator, err := mdg.NewGenerator(loaded.Contracts,
			loaded.Feed.BasePrice, loaded.Feed.BaseQty, loaded.Feed.Drift, loaded.Feed.Seed)
		if err != nil {
			return nil, err
		}
		done := make(chan struct{})
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			generator.Run(done, loaded.Feed.TickInterval, eng.ProcessTick)
		}()
		var once sync.Once
		return func() {
			once.Do(func() { close(done) })
			<-finished
		}, nil
	}
}

// pumpFills turns resting simulated orders into fills so strategies see a
// complete order lifecycle without a real venue.
func pumpFills(ctx context.Context, gateway *engine.SimGateway, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gateway.FillAll()
		}
	}
}

func logMetrics(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logs.Infof("metrics: %+v", metrics.Snapshot())
		}
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...any) {}
func (emptyLogger) Debugf(string, ...any) {}
func (emptyLogger) Errorf(string, ...any) {}
