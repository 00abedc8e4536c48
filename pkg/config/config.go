package config

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
)

// Config holds the configuration of one launcher run
type Config struct {
	Network        Network
	RPCURL         string
	PrivateKey     string
	FactoryAddress common.Address
	WorkItemsPath  string
	OutputDir      string

	Retry RetryConfig
	Fees  FeeConfig

	ConfirmationTimeout time.Duration
	StepTimeout         time.Duration

	MetricsPort   string
	MetricsAPIKey string
	LoggerConfig  LoggerConfig
}

// RetryConfig holds the retry policy of saga steps
type RetryConfig struct {
	MaxRetries      int
	Interval        time.Duration
	MaxInterval     time.Duration
	Backoff         string
	TransientErrors []ledger.ErrorKind
}

// FeeConfig holds the fee pricing parameters
type FeeConfig struct {
	BufferPercent    int64
	Floor            *big.Int
	MaxFee           *big.Int
	ApprovalGasLimit uint64
	CreationGasLimit uint64
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables. envFile, when
// set, must exist; otherwise a .env in the working directory is optional.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	network, err := GetEnvNetwork()
	if err != nil {
		return nil, err
	}

	rpcURL, err := GetEnvRPCURL(network)
	if err != nil {
		return nil, err
	}

	factory, err := GetEnvFactoryAddress(network)
	if err != nil {
		return nil, err
	}

	maxRetries, err := GetEnvMaxRetries()
	if err != nil {
		return nil, err
	}

	retryInterval, err := getEnvDuration("RETRY_INTERVAL", DefaultRetryInterval)
	if err != nil {
		return nil, err
	}

	retryMaxInterval, err := getEnvDuration("RETRY_MAX_INTERVAL", DefaultRetryMaxInterval)
	if err != nil {
		return nil, err
	}

	backoff, err := GetEnvRetryBackoff()
	if err != nil {
		return nil, err
	}

	transient, err := GetEnvTransientErrors()
	if err != nil {
		return nil, err
	}

	buffer, err := GetEnvFeeBufferPercent()
	if err != nil {
		return nil, err
	}

	floor, err := GetEnvFeeFloor()
	if err != nil {
		return nil, err
	}

	maxFee, err := GetEnvMaxFee()
	if err != nil {
		return nil, err
	}

	approvalGas, err := GetEnvApprovalGasLimit()
	if err != nil {
		return nil, err
	}

	creationGas, err := GetEnvCreationGasLimit()
	if err != nil {
		return nil, err
	}

	confirmationTimeout, err := getEnvDuration("CONFIRMATION_TIMEOUT", DefaultConfirmationTimeout)
	if err != nil {
		return nil, err
	}

	stepTimeout, err := getEnvDuration("STEP_TIMEOUT", DefaultStepTimeout)
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Network:        network,
		RPCURL:         rpcURL,
		PrivateKey:     strings.TrimSpace(os.Getenv("PRIVATE_KEY")),
		FactoryAddress: factory,
		WorkItemsPath:  GetEnvWorkItemsPath(),
		OutputDir:      GetEnvOutputDir(),
		Retry: RetryConfig{
			MaxRetries:      maxRetries,
			Interval:        retryInterval,
			MaxInterval:     retryMaxInterval,
			Backoff:         backoff,
			TransientErrors: transient,
		},
		Fees: FeeConfig{
			BufferPercent:    buffer,
			Floor:            floor,
			MaxFee:           maxFee,
			ApprovalGasLimit: approvalGas,
			CreationGasLimit: creationGas,
		},
		ConfirmationTimeout: confirmationTimeout,
		StepTimeout:         stepTimeout,
		MetricsPort:         metricsPort,
		MetricsAPIKey:       os.Getenv("METRICS_API_KEY"),
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	if cfg.FactoryAddress == (common.Address{}) {
		return fmt.Errorf("FACTORY_ADDRESS must not be the zero address")
	}
	if cfg.Retry.Backoff == BackoffExponential && cfg.Retry.MaxInterval < cfg.Retry.Interval {
		return fmt.Errorf("RETRY_MAX_INTERVAL (%s) must not be below RETRY_INTERVAL (%s)", cfg.Retry.MaxInterval, cfg.Retry.Interval)
	}
	if cfg.Fees.MaxFee.Sign() > 0 && cfg.Fees.MaxFee.Cmp(cfg.Fees.Floor) < 0 {
		return fmt.Errorf("MAX_FEE must not be below FEE_FLOOR")
	}
	return nil
}
