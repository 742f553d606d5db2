package main

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"thalerSavings/internal/apperr"
	"thalerSavings/internal/config"
	"thalerSavings/internal/model"
	"thalerSavings/internal/savings"
	"thalerSavings/internal/wallet"
)

func TestRedactURL(t *testing.T) {
	cases := map[string]string{
		"https://base-mainnet.example.io/v2/secret-key": "https://base-mainnet.example.io/***",
		"http://localhost:8545":                         "http://localhost:8545",
		"":                                              "",
		"not a url":                                     "***",
	}
	for in, want := range cases {
		if got := redactURL(in); got != want {
			t.Fatalf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thaler.log")
	logger, err := newLogger("debug", config.LogFile{Path: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log output in file")
	}

	if _, err := newLogger("loud", config.LogFile{}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestBalanceTarget(t *testing.T) {
	disconnected, err := wallet.NewKeySigner(nil, "", 0, nil)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	_, err = balanceTarget(disconnected, "")
	var nc *apperr.NotConnectedError
	if !errors.As(err, &nc) || nc.Action != "show balances" {
		t.Fatalf("expected NotConnectedError, got %v", err)
	}
	if msg := apperr.UserMessage(err); msg == "" {
		t.Fatalf("expected a user message")
	}

	want := common.HexToAddress("0x4444444444444444444444444444444444444444")
	got, err := balanceTarget(disconnected, want.Hex())
	if err != nil || got != want {
		t.Fatalf("explicit wallet: %s %v", got.Hex(), err)
	}

	_, err = balanceTarget(disconnected, "0x1234")
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || verr.Field != "wallet" {
		t.Fatalf("expected wallet ValidationError, got %v", err)
	}
}

func TestNewWithdrawOutput(t *testing.T) {
	out := newWithdrawOutput(savings.WithdrawResult{
		Path:           model.EarlyWithdrawal,
		DonationAmount: big.NewInt(63),
		DonationTx:     &types.Receipt{TxHash: common.HexToHash("0xd0"), BlockNumber: big.NewInt(9)},
	})
	if out.DonationTx == nil || out.DonationTx.TxHash != common.HexToHash("0xd0").Hex() {
		t.Fatalf("donation tx missing: %+v", out)
	}
	if out.WithdrawTx != nil || out.DonationAmount != "63" {
		t.Fatalf("output mismatch: %+v", out)
	}
}
