package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/logger"
)

const (
	// DefaultNetwork is the network targeted when NETWORK is unset
	DefaultNetwork = "zetachain-testnet"

	// DefaultWorkItemsPath is the YAML file listing the pairs to create
	DefaultWorkItemsPath = "pairs.yaml"

	// DefaultOutputDir is where batch artifacts are written
	DefaultOutputDir = "deployments"

	// DefaultMaxRetries is the attempt budget of each step
	DefaultMaxRetries = 3

	// DefaultRetryInterval is the base wait between attempts
	DefaultRetryInterval = 2 * time.Second

	// DefaultRetryMaxInterval caps exponential backoff
	DefaultRetryMaxInterval = 30 * time.Second

	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"

	// DefaultFeeBufferPercent is added to the base fee
	DefaultFeeBufferPercent = 50

	// DefaultFeeFloor is used without a usable fee snapshot (1 Gwei)
	DefaultFeeFloor = "1000000000"

	// DefaultApprovalGasLimit is the gas ceiling of approvals
	DefaultApprovalGasLimit = 60000

	// DefaultCreationGasLimit is the gas ceiling of pair creation
	DefaultCreationGasLimit = 200000

	// DefaultConfirmationTimeout bounds the wait for a write to be mined
	DefaultConfirmationTimeout = 3 * time.Minute

	// DefaultStepTimeout bounds one saga step including retries
	DefaultStepTimeout = 5 * time.Minute
)

// GetEnvNetwork returns the configured network
func GetEnvNetwork() (Network, error) {
	name := os.Getenv("NETWORK")
	if name == "" {
		name = DefaultNetwork
	}
	return GetNetwork(name)
}

// GetEnvRPCURL returns the RPC endpoint, defaulting to the network's public one
func GetEnvRPCURL(network Network) (string, error) {
	rpc := os.Getenv("RPC_URL")
	if rpc == "" {
		return network.DefaultRPCURL, nil
	}
	if _, err := url.ParseRequestURI(rpc); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpc)
	}
	return rpc, nil
}

// GetEnvFactoryAddress returns the pair factory address
func GetEnvFactoryAddress(network Network) (common.Address, error) {
	factory := os.Getenv("FACTORY_ADDRESS")
	if factory == "" {
		factory = network.DefaultFactory
	}
	if factory == "" {
		return common.Address{}, fmt.Errorf("FACTORY_ADDRESS is required for network %s", network.Name)
	}
	if !common.IsHexAddress(factory) {
		return common.Address{}, fmt.Errorf("invalid FACTORY_ADDRESS value: %s, must be a valid Ethereum address", factory)
	}
	return common.HexToAddress(factory), nil
}

// GetEnvWorkItemsPath returns the path of the work items file
func GetEnvWorkItemsPath() string {
	if path := os.Getenv("WORK_ITEMS_PATH"); path != "" {
		return path
	}
	return DefaultWorkItemsPath
}

// GetEnvOutputDir returns the artifact directory
func GetEnvOutputDir() string {
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		return dir
	}
	return DefaultOutputDir
}

// GetEnvMaxRetries returns the attempt budget per step
func GetEnvMaxRetries() (int, error) {
	maxRetries := os.Getenv("MAX_RETRIES")
	if maxRetries == "" {
		return DefaultMaxRetries, nil
	}

	maxRetriesInt, err := strconv.Atoi(maxRetries)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_RETRIES value: %s, must be an integer", maxRetries)
	}
	if maxRetriesInt < 1 {
		return 0, fmt.Errorf("MAX_RETRIES must be greater than 0")
	}
	return maxRetriesInt, nil
}

// GetEnvRetryBackoff returns the backoff strategy name
func GetEnvRetryBackoff() (string, error) {
	backoff := strings.ToLower(os.Getenv("RETRY_BACKOFF"))
	switch backoff {
	case "":
		return BackoffFixed, nil
	case BackoffFixed, BackoffExponential:
		return backoff, nil
	}
	return "", fmt.Errorf("invalid RETRY_BACKOFF value: %s, must be 'fixed' or 'exponential'", backoff)
}

// GetEnvTransientErrors returns the retry allow-list
func GetEnvTransientErrors() ([]ledger.ErrorKind, error) {
	raw := os.Getenv("TRANSIENT_ERRORS")
	if raw == "" {
		kinds := make([]ledger.ErrorKind, len(ledger.DefaultTransientKinds))
		copy(kinds, ledger.DefaultTransientKinds)
		return kinds, nil
	}

	var kinds []ledger.ErrorKind
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kind, err := ledger.ParseErrorKind(part)
		if err != nil {
			return nil, fmt.Errorf("invalid TRANSIENT_ERRORS value: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// GetEnvFeeBufferPercent returns the fee buffer percentage
func GetEnvFeeBufferPercent() (int64, error) {
	buffer := os.Getenv("FEE_BUFFER_PERCENT")
	if buffer == "" {
		return DefaultFeeBufferPercent, nil
	}

	bufferInt, err := strconv.ParseInt(buffer, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid FEE_BUFFER_PERCENT value: %s, must be an integer", buffer)
	}
	if bufferInt < 0 {
		return 0, fmt.Errorf("FEE_BUFFER_PERCENT must be greater than or equal to 0")
	}
	return bufferInt, nil
}

// GetEnvFeeFloor returns the fee used when no snapshot is available
func GetEnvFeeFloor() (*big.Int, error) {
	floor, err := getEnvWei("FEE_FLOOR", DefaultFeeFloor)
	if err != nil {
		return nil, err
	}
	if floor.Sign() == 0 {
		return nil, fmt.Errorf("FEE_FLOOR must be greater than 0")
	}
	return floor, nil
}

// GetEnvMaxFee returns the fee ceiling, zero meaning uncapped
func GetEnvMaxFee() (*big.Int, error) {
	return getEnvWei("MAX_FEE", "0")
}

// GetEnvApprovalGasLimit returns the approval gas ceiling
func GetEnvApprovalGasLimit() (uint64, error) {
	return getEnvGasLimit("APPROVAL_GAS_LIMIT", DefaultApprovalGasLimit)
}

// GetEnvCreationGasLimit returns the creation gas ceiling
func GetEnvCreationGasLimit() (uint64, error) {
	return getEnvGasLimit("CREATION_GAS_LIMIT", DefaultCreationGasLimit)
}

// GetEnvMetricsPort returns the metrics server port; empty disables the server
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return "", nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvLogLevel returns the log level
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}
	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %w", err)
	}
	return parsed, nil
}

// GetEnvLogColoring returns whether log prefixes are colored
func GetEnvLogColoring() (bool, error) {
	return getEnvBool("LOG_COLORING", true)
}

// getEnvDuration reads a Go duration string
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return parsed, nil
}

func getEnvWei(key, def string) (*big.Int, error) {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}

	wei := new(big.Int)
	if _, ok := wei.SetString(value, 10); !ok {
		return nil, fmt.Errorf("invalid %s value: %s, must be a valid integer string", key, value)
	}
	if wei.Sign() < 0 {
		return nil, fmt.Errorf("%s must be greater than or equal to 0", key)
	}
	return wei, nil
}

func getEnvGasLimit(key string, def uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	limit, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a positive integer", key, value)
	}
	if limit == 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return limit, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	if value == "true" {
		return true, nil
	} else if value == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid %s value: %s, must be 'true' or 'false'", key, value)
}
