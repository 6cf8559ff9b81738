package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoad_Presets(t *testing.T) {
	t.Setenv("NETWORK", "mainnet")
	t.Setenv("ETH_RPC_URL", "")
	t.Setenv("CONTRACT_ADDRESS", "")

	cfg := Load()
	if cfg.ChainID != 1 {
		t.Errorf("ChainID = %d, want 1", cfg.ChainID)
	}
	if cfg.ExplorerURL != "https://etherscan.io" {
		t.Errorf("ExplorerURL = %q", cfg.ExplorerURL)
	}

	t.Setenv("NETWORK", "anvil")
	cfg = Load()
	if cfg.ChainID != 31337 {
		t.Errorf("ChainID = %d, want 31337", cfg.ChainID)
	}
	want := common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	if cfg.ContractAddress != want {
		t.Errorf("ContractAddress = %s, want %s", cfg.ContractAddress, want)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NETWORK", "anvil")
	t.Setenv("CHAIN_ID", "5")
	t.Setenv("EXPLORER_URL", "https://example.org/")
	t.Setenv("INDEXER_BATCH_BLOCKS", "0")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg := Load()
	if cfg.ChainID != 5 {
		t.Errorf("ChainID = %d, want 5", cfg.ChainID)
	}
	if cfg.IndexerBatchBlocks != 1 {
		t.Errorf("IndexerBatchBlocks = %d, want 1", cfg.IndexerBatchBlocks)
	}
	if cfg.RateLimitPerMinute != 100 {
		t.Errorf("RateLimitPerMinute = %d, want fallback 100", cfg.RateLimitPerMinute)
	}
	if got := cfg.TxURL("0xabc"); got != "https://example.org/tx/0xabc" {
		t.Errorf("TxURL = %q", got)
	}
	if got := cfg.AddressURL("0xdef"); got != "https://example.org/address/0xdef" {
		t.Errorf("AddressURL = %q", got)
	}
}

func TestExplorerURLs_Empty(t *testing.T) {
	cfg := &Config{}
	if cfg.TxURL("0x1") != "" || cfg.AddressURL("0x1") != "" {
		t.Error("expected empty links without explorer")
	}
}
