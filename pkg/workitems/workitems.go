// Package workitems loads the ordered list of pairs to create from a YAML file.
package workitems

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/speedrun-hq/pairlauncher/pkg/models"
)

// maxFeeRate is 100% expressed in hundredths of a bip
const maxFeeRate = 1_000_000

// Token is an asset referenced by pairs
type Token struct {
	Address  string `yaml:"address"`
	Decimals int32  `yaml:"decimals"`
}

// Pair is one pair entry as written in the file. Amounts are human readable
// and scaled by the token decimals on load.
type Pair struct {
	Symbol      string `yaml:"symbol"`
	TokenA      string `yaml:"tokenA"`
	TokenB      string `yaml:"tokenB"`
	AmountA     string `yaml:"amountA"`
	AmountB     string `yaml:"amountB"`
	FeeRate     uint32 `yaml:"feeRate"`
	TargetPrice string `yaml:"targetPrice"`
}

// File is the layout of a work item file
type File struct {
	Tokens map[string]Token `yaml:"tokens"`
	Pairs  []Pair           `yaml:"pairs"`
}

// Load reads and validates the work items at path
func Load(path string) ([]models.WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read work items: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates work items, preserving file order
func Parse(data []byte) ([]models.WorkItem, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse work items: %w", err)
	}
	if len(file.Pairs) == 0 {
		return nil, errors.New("no pairs defined")
	}

	tokens := make(map[string]resolvedToken, len(file.Tokens))
	for name, tok := range file.Tokens {
		resolved, err := resolveToken(name, tok)
		if err != nil {
			return nil, err
		}
		tokens[name] = resolved
	}

	items := make([]models.WorkItem, 0, len(file.Pairs))
	seen := make(map[string]bool, len(file.Pairs))
	for i, p := range file.Pairs {
		item, err := p.toWorkItem(tokens)
		if err != nil {
			return nil, fmt.Errorf("pair %d (%s): %w", i, p.Symbol, err)
		}
		key := strings.ToUpper(item.Symbol)
		if seen[key] {
			return nil, fmt.Errorf("pair %d: duplicate symbol %s", i, item.Symbol)
		}
		seen[key] = true
		items = append(items, item)
	}
	return items, nil
}

type resolvedToken struct {
	address  common.Address
	decimals int32
}

func resolveToken(name string, tok Token) (resolvedToken, error) {
	if !common.IsHexAddress(tok.Address) {
		return resolvedToken{}, fmt.Errorf("token %s: invalid address %q", name, tok.Address)
	}
	addr := common.HexToAddress(tok.Address)
	if addr == (common.Address{}) {
		return resolvedToken{}, fmt.Errorf("token %s: zero address", name)
	}
	if tok.Decimals < 0 || tok.Decimals > 36 {
		return resolvedToken{}, fmt.Errorf("token %s: decimals out of range: %d", name, tok.Decimals)
	}
	return resolvedToken{address: addr, decimals: tok.Decimals}, nil
}

func (p Pair) toWorkItem(tokens map[string]resolvedToken) (models.WorkItem, error) {
	symbol := strings.TrimSpace(p.Symbol)
	if symbol == "" {
		return models.WorkItem{}, errors.New("symbol is required")
	}

	tokenA, ok := tokens[p.TokenA]
	if !ok {
		return models.WorkItem{}, fmt.Errorf("unknown token %q", p.TokenA)
	}
	tokenB, ok := tokens[p.TokenB]
	if !ok {
		return models.WorkItem{}, fmt.Errorf("unknown token %q", p.TokenB)
	}
	if tokenA.address == tokenB.address {
		return models.WorkItem{}, errors.New("tokenA and tokenB must differ")
	}

	amountA, err := baseUnits(p.AmountA, tokenA.decimals)
	if err != nil {
		return models.WorkItem{}, fmt.Errorf("amountA: %w", err)
	}
	amountB, err := baseUnits(p.AmountB, tokenB.decimals)
	if err != nil {
		return models.WorkItem{}, fmt.Errorf("amountB: %w", err)
	}

	if p.FeeRate == 0 || p.FeeRate >= maxFeeRate {
		return models.WorkItem{}, fmt.Errorf("feeRate out of range: %d", p.FeeRate)
	}

	var target decimal.Decimal
	if p.TargetPrice != "" {
		target, err = decimal.NewFromString(p.TargetPrice)
		if err != nil {
			return models.WorkItem{}, fmt.Errorf("targetPrice: %w", err)
		}
	}

	return models.WorkItem{
		Symbol:      symbol,
		TokenA:      tokenA.address,
		TokenB:      tokenB.address,
		AmountA:     amountA,
		AmountB:     amountB,
		FeeRate:     p.FeeRate,
		TargetPrice: target,
	}, nil
}

// baseUnits converts a human amount to integer base units
func baseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, err
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("must be positive: %s", amount)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%s has more than %d decimals", amount, decimals)
	}
	return scaled.BigInt(), nil
}
