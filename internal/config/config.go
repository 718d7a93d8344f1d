package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"raffled/internal/blockchain"
	"raffled/internal/logger"
	"raffled/internal/royalty"
	"raffled/internal/storage"
	"raffled/internal/tracker"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	DriverSqlite = "sqlite"
	DriverMemory = "memory"
)

const (
	RoyaltySourceStatic = "static"
	RoyaltySourceTonapi = "tonapi"
)

// Duration lets toml read "30s" style values.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type Configuration struct {
	Env        string               `toml:"env"`
	HTTP       HTTPServer           `toml:"http"`
	Storage    Storage              `toml:"storage"`
	Logger     logger.Configuration `toml:"logger"`
	Contract   Contract             `toml:"contract"`
	Royalty    Royalty              `toml:"royalty"`
	Randomness Randomness           `toml:"randomness"`
	Tracker    Tracker              `toml:"tracker"`
}

type HTTPServer struct {
	Address     string   `toml:"address"`
	Timeout     Duration `toml:"timeout"`
	IdleTimeout Duration `toml:"idle_timeout"`
}

type Storage struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type Contract struct {
	DAOAddress          string   `toml:"dao_address"`
	CustodyAddress      string   `toml:"custody_address"`
	MaxNumberSlots      uint32   `toml:"max_number_slots"`
	MaxBulkPurchase     uint32   `toml:"max_bulk_purchase"`
	NFTSlotLimit        uint32   `toml:"nft_slot_limit"`
	PlatformFeeBps      uint32   `toml:"platform_fee_bps"`
	UnsafeRandomness    bool     `toml:"unsafe_randomness"`
	SupportedCurrencies []string `toml:"supported_currencies"`
}

// RoyaltyEntry registers creator splits for a whole collection, or for one
// token when TokenID is set.
type RoyaltyEntry struct {
	Contract string          `toml:"contract"`
	TokenID  string          `toml:"token_id"`
	Splits   []royalty.Split `toml:"splits"`
}

type Royalty struct {
	Source      string         `toml:"source"`
	TonapiToken string         `toml:"tonapi_token"`
	Entries     []RoyaltyEntry `toml:"entry"`
}

type Randomness struct {
	Source string `toml:"source"`
	Secret string `toml:"secret"`
}

type Tracker struct {
	Enabled        bool     `toml:"enabled"`
	Interval       Duration `toml:"interval"`
	AutoDistribute bool     `toml:"auto_distribute"`
}

func defaults() *Configuration {
	return &Configuration{
		Env: EnvLocal,
		HTTP: HTTPServer{
			Address:     "localhost:8080",
			Timeout:     Duration{4 * time.Second},
			IdleTimeout: Duration{60 * time.Second},
		},
		Storage: Storage{
			Driver: DriverSqlite,
			Path:   "raffled.db",
		},
		Logger: logger.Configuration{
			Level:   "info",
			Console: true,
		},
		Contract: Contract{
			MaxNumberSlots:  2000,
			MaxBulkPurchase: 50,
			NFTSlotLimit:    100,
		},
		Royalty: Royalty{
			Source: RoyaltySourceStatic,
		},
		Randomness: Randomness{
			Source: "crypto",
		},
		Tracker: Tracker{
			Enabled:  true,
			Interval: Duration{tracker.DefaultInterval},
		},
	}
}

// Load reads .env into the process environment, applies environment
// variables over the defaults and finally the optional TOML file at path.
func Load(path string) (*Configuration, error) {
	if err := godotenv.Load(); err != nil {
		logger.Warn("config: no .env file loaded", zap.Error(err))
	}

	configuration := defaults()
	if err := configuration.fromEnv(); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, configuration); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := configuration.normalize(); err != nil {
		return nil, err
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return configuration, nil
}

func (c *Configuration) fromEnv() error {
	env := environment{}

	env.string("APP_ENV", &c.Env)
	env.string("HTTP_ADDRESS", &c.HTTP.Address)
	env.duration("HTTP_TIMEOUT", &c.HTTP.Timeout)
	env.duration("HTTP_IDLE_TIMEOUT", &c.HTTP.IdleTimeout)

	env.string("STORAGE_DRIVER", &c.Storage.Driver)
	env.string("STORAGE_PATH", &c.Storage.Path)

	env.string("LOG_FILE", &c.Logger.LogFile)
	env.string("LOG_ERROR_FILE", &c.Logger.ErrorFile)
	env.string("LOG_LEVEL", &c.Logger.Level)
	env.bool("LOG_CONSOLE", &c.Logger.Console)

	env.string("DAO_ADDRESS", &c.Contract.DAOAddress)
	env.string("CUSTODY_ADDRESS", &c.Contract.CustodyAddress)
	env.uint32("MAX_NUMBER_SLOTS", &c.Contract.MaxNumberSlots)
	env.uint32("MAX_BULK_PURCHASE", &c.Contract.MaxBulkPurchase)
	env.uint32("NFT_SLOT_LIMIT", &c.Contract.NFTSlotLimit)
	env.uint32("PLATFORM_FEE_BPS", &c.Contract.PlatformFeeBps)
	env.bool("UNSAFE_RANDOMNESS", &c.Contract.UnsafeRandomness)
	env.list("SUPPORTED_CURRENCIES", &c.Contract.SupportedCurrencies)

	env.string("ROYALTY_SOURCE", &c.Royalty.Source)
	env.string("TONAPI_TOKEN", &c.Royalty.TonapiToken)

	env.string("RANDOMNESS_SOURCE", &c.Randomness.Source)
	env.string("RANDOMNESS_SECRET", &c.Randomness.Secret)

	env.bool("TRACKER_ENABLED", &c.Tracker.Enabled)
	env.duration("TRACKER_INTERVAL", &c.Tracker.Interval)
	env.bool("AUTO_DISTRIBUTE", &c.Tracker.AutoDistribute)

	return errors.Join(env.errs...)
}

// normalize rewrites every configured address to raw form.
func (c *Configuration) normalize() error {
	var err error
	if c.Contract.DAOAddress != "" {
		if c.Contract.DAOAddress, err = blockchain.NormalizeAddress(c.Contract.DAOAddress); err != nil {
			return fmt.Errorf("config: dao address: %w", err)
		}
	}
	if c.Contract.CustodyAddress != "" {
		if c.Contract.CustodyAddress, err = blockchain.NormalizeAddress(c.Contract.CustodyAddress); err != nil {
			return fmt.Errorf("config: custody address: %w", err)
		}
	}
	if err := blockchain.NormalizeAll(c.Contract.SupportedCurrencies); err != nil {
		return fmt.Errorf("config: supported currencies: %w", err)
	}

	for i := range c.Royalty.Entries {
		entry := &c.Royalty.Entries[i]
		if entry.Contract, err = blockchain.NormalizeAddress(entry.Contract); err != nil {
			return fmt.Errorf("config: royalty entry %d: %w", i, err)
		}
		for j := range entry.Splits {
			if entry.Splits[j].Recipient, err = blockchain.NormalizeAddress(entry.Splits[j].Recipient); err != nil {
				return fmt.Errorf("config: royalty entry %d split %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func (c *Configuration) Validate() error {
	if c.Contract.DAOAddress == "" {
		return errors.New("config: DAO_ADDRESS is required")
	}
	if c.Contract.PlatformFeeBps > 10_000 {
		return fmt.Errorf("config: platform fee %d bps above 10000", c.Contract.PlatformFeeBps)
	}

	switch c.Storage.Driver {
	case DriverSqlite:
		if c.Storage.Path == "" {
			return errors.New("config: STORAGE_PATH is required for sqlite")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Royalty.Source {
	case RoyaltySourceStatic:
	case RoyaltySourceTonapi:
		if len(c.Royalty.Entries) > 0 {
			return errors.New("config: static royalty entries need the static royalty source")
		}
	default:
		return fmt.Errorf("config: unknown royalty source %q", c.Royalty.Source)
	}

	if c.Randomness.Source == "hash" && c.Randomness.Secret == "" {
		return errors.New("config: RANDOMNESS_SECRET is required for the hash source")
	}
	return nil
}

func (c *Configuration) ContractDefaults() storage.ContractConfig {
	return storage.ContractConfig{
		DAOAddress:          c.Contract.DAOAddress,
		MaxNumberSlots:      c.Contract.MaxNumberSlots,
		MaxBulkPurchase:     c.Contract.MaxBulkPurchase,
		NFTSlotLimit:        c.Contract.NFTSlotLimit,
		PlatformFeeBps:      c.Contract.PlatformFeeBps,
		UnsafeRandomness:    c.Contract.UnsafeRandomness,
		SupportedCurrencies: append([]string(nil), c.Contract.SupportedCurrencies...),
	}
}

// RoyaltyRegistry builds the registry named by the royalty source.
func (c *Configuration) RoyaltyRegistry() (royalty.Registry, error) {
	if c.Royalty.Source == RoyaltySourceTonapi {
		registry, err := royalty.NewTonapiRegistry(c.Royalty.TonapiToken)
		if err != nil {
			return nil, err
		}
		return registry, nil
	}

	registry := royalty.NewStaticRegistry()
	for _, entry := range c.Royalty.Entries {
		if entry.TokenID != "" {
			registry.SetToken(entry.Contract, entry.TokenID, entry.Splits)
			continue
		}
		registry.SetContract(entry.Contract, entry.Splits)
	}
	return registry, nil
}

type environment struct {
	errs []error
}

func (e *environment) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (e *environment) string(key string, target *string) {
	if value, ok := e.lookup(key); ok {
		*target = value
	}
}

func (e *environment) bool(key string, target *bool) {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*target = parsed
}

func (e *environment) uint32(key string, target *uint32) {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return
	}
	parsed, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*target = uint32(parsed)
}

func (e *environment) duration(key string, target *Duration) {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return
	}
	if err := target.UnmarshalText([]byte(value)); err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
	}
}

func (e *environment) list(key string, target *[]string) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*target = items
}
