package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmerrifield20/hashledger/internal/hashledger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	cfg     config
	logger  = zap.NewNop()
)

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hashledger",
	Short: "Hash-linked ledger with tamper detection and payload recovery",
	Long: `hashledger keeps an append-only chain of integer payloads in which every
record commits to its predecessor. It detects out-of-band edits by comparing
recomputed commitments against the ones trusted at append time, locates the
first divergent record, and recovers payloads whose elements were reordered.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(cfgFile); err != nil {
			return err
		}
		l, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		if cfg.configFileMissing {
			logger.Debug("no config file found, using defaults and env vars")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/hashledger.yaml or ~/.hashledger/hashledger.yaml)")

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// ── configuration ────────────────────────────────────────────────────────────

type ledgerConfig struct {
	Algorithm     hashledger.Algorithm
	RecoveryLimit int
}

type serverConfig struct {
	Port            int
	CORSOrigins     []string
	RateLimitRPS    int
	AllowTamper     bool
	SeedDemo        bool
	RecoveryTimeout string
}

type logConfig struct {
	Level       string
	Development bool
}

type config struct {
	Ledger ledgerConfig
	Server serverConfig
	Log    logConfig

	configFileMissing bool
}

func loadConfig(path string) (config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hashledger")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.hashledger")
		}
	}
	v.SetEnvPrefix("hashledger")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ledger.algorithm", string(hashledger.DefaultAlgorithm))
	v.SetDefault("ledger.recovery_limit", hashledger.DefaultRecoveryLimit)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.allow_tamper", false)
	v.SetDefault("server.seed_demo", false)
	v.SetDefault("server.recovery_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	var c config
	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return c, fmt.Errorf("read config: %w", err)
		}
		c.configFileMissing = true
	}

	algo, err := hashledger.ParseAlgorithm(v.GetString("ledger.algorithm"))
	if err != nil {
		return c, fmt.Errorf("ledger.algorithm: %w", err)
	}
	c.Ledger = ledgerConfig{
		Algorithm:     algo,
		RecoveryLimit: v.GetInt("ledger.recovery_limit"),
	}
	c.Server = serverConfig{
		Port:            v.GetInt("server.port"),
		CORSOrigins:     v.GetStringSlice("server.cors_origins"),
		RateLimitRPS:    v.GetInt("server.rate_limit_rps"),
		AllowTamper:     v.GetBool("server.allow_tamper"),
		SeedDemo:        v.GetBool("server.seed_demo"),
		RecoveryTimeout: v.GetString("server.recovery_timeout"),
	}
	c.Log = logConfig{
		Level:       v.GetString("log.level"),
		Development: v.GetBool("log.development"),
	}
	return c, nil
}

func newLogger(c logConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func (c ledgerConfig) options() []hashledger.Option {
	return []hashledger.Option{
		hashledger.WithAlgorithm(c.Algorithm),
		hashledger.WithRecoveryLimit(c.RecoveryLimit),
		hashledger.WithLogger(logger),
	}
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hashledger version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hashledger %s\n", version)
	},
}
