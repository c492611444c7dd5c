package main

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vblaha/saldo/internal/infrastructure/config"
)

func TestBuildAnomalyConfig(t *testing.T) {
	cfg := &config.Config{
		HighAmountThreshold: "50000.00",
		AMLCashThreshold:    "10000.00",
		CashKontoPrefixes:   []string{"102"},
		BusinessHoursStart:  7,
		BusinessHoursEnd:    20,
	}

	got, err := buildAnomalyConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.HighAmountThreshold.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("unexpected high amount threshold %s", got.HighAmountThreshold)
	}
	if !got.AMLCashThreshold.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("unexpected aml cash threshold %s", got.AMLCashThreshold)
	}
}

func TestBuildAnomalyConfigRejectsMalformedThreshold(t *testing.T) {
	cfg := &config.Config{
		HighAmountThreshold: "a-lot",
		AMLCashThreshold:    "10000.00",
	}

	if _, err := buildAnomalyConfig(cfg); err == nil {
		t.Fatalf("expected error for malformed threshold")
	}
}
