package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"thalerSavings/internal/apperr"
	"thalerSavings/internal/balance"
	"thalerSavings/internal/chain"
	"thalerSavings/internal/config"
	"thalerSavings/internal/savings"
	"thalerSavings/internal/wallet"
)

func main() {
	root := &cobra.Command{
		Use:           "thaler",
		Short:         "Thaler savings pools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "RPC URL")
	root.PersistentFlags().String("contract", "", "savings contract address")
	root.PersistentFlags().String("private-key", "", "hex private key of the connected wallet")
	root.PersistentFlags().Duration("confirm-timeout", 2*time.Minute, "time to wait for a transaction receipt")
	root.PersistentFlags().String("price-feed", "", "ETH/USD aggregator address")
	root.PersistentFlags().Duration("price-max-age", time.Hour, "maximum accepted price age")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-file", "", "optional rotated log file")

	root.AddCommand(
		newPoolsCmd(),
		newPoolCmd(),
		newQuoteCmd(),
		newBalanceCmd(),
		newCreateCmd(),
		newDepositCmd(),
		newWithdrawCmd(),
		newIndexCmd(),
		newSnapshotCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperr.UserMessage(err))
		os.Exit(1)
	}
}

// app bundles the clients a command needs.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	chain   *chain.Client
	client  *savings.Client
	signer  *wallet.KeySigner
	tracker *balance.Tracker
	service *savings.Service
}

func (a *app) Close() {
	if a.chain != nil {
		a.chain.Close()
	}
	_ = a.logger.Sync()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger, err := newLogger(cfg.LogLevel, cfg.Log)
	if err != nil {
		return nil, err
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("savings contract address is required")
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	signer, err := wallet.NewKeySigner(chainClient, cfg.PrivateKey, cfg.ConfirmTimeout, logger)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	tokens, err := config.ParseAddresses(cfg.Tokens)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	client := savings.NewClient(chainClient, common.HexToAddress(cfg.Contract), logger)
	tracker := balance.NewTracker(chainClient, client, tokens, cfg.BalanceTTL, logger)
	service := savings.NewService(client, signer, logger)
	service.UseDonationLookup(chainClient)
	service.UseBalanceCache(tracker)
	logger.Debug("client ready",
		zap.String("rpc", redactURL(cfg.RPCURL)),
		zap.String("contract", cfg.Contract),
		zap.Bool("wallet_connected", signer.IsReady()),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		chain:   chainClient,
		client:  client,
		signer:  signer,
		tracker: tracker,
		service: service,
	}, nil
}

// loadApp reads the shared config for cmd and connects.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg)
}

func newLogger(level string, file config.LogFile) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if file.Path == "" {
		return logger, nil
	}

	rotated := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotated, cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

// redactURL hides everything after the host, where providers put API keys.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redactDSN(raw)
	}
	if u.Path == "" || u.Path == "/" {
		return u.Scheme + "://" + u.Host
	}
	return u.Scheme + "://" + u.Host + "/***"
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
