// Package ops loads and resolves the runtime configuration.
package ops

import (
	"encoding/json"
	"os"
	"time"

	"main/internal/errors"
	"main/internal/schema"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Engine     EngineConfig     `json:"engine"`
	Contracts  []ContractConfig `json:"contracts"`
	Strategies []StrategyConfig `json:"strategies"`
	Database   DatabaseConfig   `json:"database"`
	Feed       FeedConfig       `json:"feed"`
}

// EngineConfig captures dispatch tuning.
type EngineConfig struct {
	QueueCapacity int `json:"queueCapacity"`
}

// ContractConfig describes one tradable instrument.
type ContractConfig struct {
	Symbol    string  `json:"symbol"`
	Exchange  string  `json:"exchange"`
	PriceTick float64 `json:"priceTick"`
	Size      int64   `json:"size"`
}

// StrategyConfig describes one strategy instance to create at startup.
type StrategyConfig struct {
	Class     string         `json:"class"`
	Name      string         `json:"name"`
	VTSymbols []string       `json:"vtSymbols"`
	Setting   map[string]any `json:"setting"`
	AutoStart *bool          `json:"autoStart"`
}

// DatabaseConfig describes the optional PostgreSQL connection.
type DatabaseConfig struct {
	Enabled    bool              `json:"enabled"`
	Host       string            `json:"host"`
	Port       int               `json:"port"`
	User       string            `json:"user"`
	Password   string            `json:"password"`
	Database   string            `json:"database"`
	SSLMode    string            `json:"sslMode"`
	Params     map[string]string `json:"params"`
	ConnString string            `json:"connString"`
}

// FeedConfig selects the market data source.
type FeedConfig struct {
	Source         string  `json:"source"`
	TickIntervalMS int     `json:"tickIntervalMs"`
	BasePrice      float64 `json:"basePrice"`
	BaseQty        int64   `json:"baseQty"`
	Drift          float64 `json:"drift"`
	Seed           int64   `json:"seed"`
}

// Feed sources.
const (
	FeedSynthetic = "synthetic"
	FeedBinance   = "binance"
)

// StrategySpec is one resolved strategy entry.
type StrategySpec struct {
	Class     string
	Name      string
	VTSymbols []schema.VTSymbol
	Setting   map[string]any
	AutoStart bool
}

// FeedSpec is the resolved market data source.
type FeedSpec struct {
	Source       string
	TickInterval time.Duration
	BasePrice    float64
	BaseQty      int64
	Drift        float64
	Seed         int64
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	QueueCapacity int
	Contracts     *schema.ContractRegistry
	Strategies    []StrategySpec
	Database      DatabaseConfig
	Feed          FeedSpec
}

// Load reads a JSON config file and resolves every section. Any malformed
// entry fails the whole load.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Config("read config: %v", err)
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Config("parse config: %v", err)
	}
	return Resolve(cfg)
}

// Resolve validates a parsed config and builds the contract registry.
func Resolve(cfg FileConfig) (Loaded, error) {
	contracts, err := buildContracts(cfg.Contracts)
	if err != nil {
		return Loaded{}, err
	}
	strategies, err := resolveStrategies(cfg.Strategies, contracts)
	if err != nil {
		return Loaded{}, err
	}
	feed, err := resolveFeed(cfg.Feed)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Database.Enabled && cfg.Database.Database == "" && cfg.Database.ConnString == "" {
		return Loaded{}, errors.Config("database enabled without a database name")
	}
	return Loaded{
		QueueCapacity: cfg.Engine.QueueCapacity,
		Contracts:     contracts,
		Strategies:    strategies,
		Database:      cfg.Database,
		Feed:          feed,
	}, nil
}

func buildContracts(cfgs []ContractConfig) (*schema.ContractRegistry, error) {
	if len(cfgs) == 0 {
		return nil, errors.Config("no contracts configured")
	}
	reg := schema.NewContractRegistry()
	for _, c := range cfgs {
		if c.Exchange == "" {
			return nil, errors.Config("contract %s: exchange is empty", c.Symbol)
		}
		err := reg.Add(schema.Contract{
			Symbol:    c.Symbol,
			Exchange:  schema.Exchange(c.Exchange),
			PriceTick: c.PriceTick,
			Size:      c.Size,
		})
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func resolveStrategies(cfgs []StrategyConfig, contracts *schema.ContractRegistry) ([]StrategySpec, error) {
	out := make([]StrategySpec, 0, len(cfgs))
	names := make(map[string]struct{}, len(cfgs))
	for _, c := range cfgs {
		if c.Class == "" {
			return nil, errors.Config("strategy %s: class is empty", c.Name)
		}
		if c.Name == "" {
			return nil, errors.Config("strategy of class %s: name is empty", c.Class)
		}
		if _, ok := names[c.Name]; ok {
			return nil, errors.Config("duplicate strategy name: %s", c.Name)
		}
		names[c.Name] = struct{}{}

		vts := make([]schema.VTSymbol, 0, len(c.VTSymbols))
		for _, raw := range c.VTSymbols {
			vt := schema.VTSymbol(raw)
			if _, ok := contracts.Contract(vt); !ok {
				return nil, errors.Config("strategy %s: unknown instrument: %s", c.Name, raw)
			}
			vts = append(vts, vt)
		}

		autoStart := true
		if c.AutoStart != nil {
			autoStart = *c.AutoStart
		}
		out = append(out, StrategySpec{
			Class:     c.Class,
			Name:      c.Name,
			VTSymbols: vts,
			Setting:   c.Setting,
			AutoStart: autoStart,
		})
	}
	return out, nil
}

func resolveFeed(cfg FeedConfig) (FeedSpec, error) {
	source := cfg.Source
	if source == "" {
		source = FeedSynthetic
	}
	if source != FeedSynthetic && source != FeedBinance {
		return FeedSpec{}, errors.Config("unknown feed source: %s", cfg.Source)
	}

	spec := FeedSpec{
		Source:       source,
		TickInterval: time.Duration(cfg.TickIntervalMS) * time.Millisecond,
		BasePrice:    cfg.BasePrice,
		BaseQty:      cfg.BaseQty,
		Drift:        cfg.Drift,
		Seed:         cfg.Seed,
	}
	if spec.TickInterval <= 0 {
		spec.TickInterval = 100 * time.Millisecond
	}
	if spec.BasePrice <= 0 {
		spec.BasePrice = 100
	}
	if spec.BaseQty <= 0 {
		spec.BaseQty = 1
	}
	if spec.Drift <= 0 {
		spec.Drift = 2
	}
	return spec, nil
}
