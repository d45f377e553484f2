package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Plans []catalogEntry `yaml:"plans"`
}

type catalogEntry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	MonthlyPrice string `yaml:"monthly_price"`
	AnnualPrice  string `yaml:"annual_price"`
	Currency     string `yaml:"currency"`
	SortOrder    int    `yaml:"sort_order"`
}

// loadCatalog reads a plan catalog from YAML. An empty file yields no plans.
func loadCatalog(path string) ([]model.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]model.Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal plan catalog yaml: %w", err)
	}

	plans := make([]model.Plan, 0, len(file.Plans))
	seen := make(map[string]bool, len(file.Plans))
	for i, entry := range file.Plans {
		id := strings.ToLower(strings.TrimSpace(entry.ID))
		if id == "" {
			return nil, fmt.Errorf("plans[%d]: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("plans[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
		if entry.Name == "" {
			return nil, fmt.Errorf("plans[%d]: name is required", i)
		}

		monthly, err := price(entry.MonthlyPrice)
		if err != nil {
			return nil, fmt.Errorf("plans[%d]: monthly_price: %w", i, err)
		}
		annual, err := price(entry.AnnualPrice)
		if err != nil {
			return nil, fmt.Errorf("plans[%d]: annual_price: %w", i, err)
		}

		currency := strings.ToUpper(strings.TrimSpace(entry.Currency))
		if currency == "" {
			currency = "BRL"
		}

		plans = append(plans, model.Plan{
			ID:           id,
			Name:         entry.Name,
			MonthlyPrice: monthly,
			AnnualPrice:  annual,
			Currency:     currency,
			SortOrder:    entry.SortOrder,
		})
	}
	return plans, nil
}

func price(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("must be positive")
	}
	if d.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("at most two decimal places")
	}
	return d, nil
}
