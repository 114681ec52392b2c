// Package freepay implements the core of a tap-to-pay crypto payment flow:
// the contactless exchange protocol between a payer and a collector device,
// and the routing engine that decides which asset on which network settles
// a requested amount.
package freepay

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freepay/freepay/balance"
	"github.com/freepay/freepay/clients"
	"github.com/freepay/freepay/eip681"
	"github.com/freepay/freepay/logger"
	"github.com/freepay/freepay/metrics"
	"github.com/freepay/freepay/routing"
	"github.com/freepay/freepay/session"
	"github.com/freepay/freepay/settlement"
	"github.com/freepay/freepay/types"
	"github.com/freepay/freepay/utils"
)

// FreePay wires the protocol and routing services together.
type FreePay struct {
	config   *types.Config
	log      logger.Logger
	rec      metrics.Recorder
	timeout  time.Duration
	sources  map[types.Network]balance.NetworkSource
	registry *session.Registry
}

// New creates a FreePay instance. Networks are added with AddNetwork.
func New(config *types.Config, opts ...Option) *FreePay {
	if config == nil {
		config = &types.Config{}
	}
	timeout := 30 * time.Second
	if config.DefaultTimeout > 0 {
		timeout = config.DefaultTimeout
	}

	f := &FreePay{
		config:  config,
		log:     logger.NoopLogger{},
		rec:     metrics.NoopRecorder{},
		timeout: timeout,
		sources: make(map[types.Network]balance.NetworkSource),
	}
	if config.LogLevel != "" {
		f.log = logger.NewZapLogger(config.LogLevel)
	}
	if config.EnableMetrics {
		f.rec = metrics.NewPrometheusRecorder()
	}
	for _, opt := range opts {
		opt(f)
	}

	f.registry = session.NewRegistry(config.SessionTimeout, f.log)
	return f
}

// NewWithDefaults creates an instance with default configuration.
func NewWithDefaults() *FreePay {
	return New(&types.Config{
		DefaultTimeout: 30 * time.Second,
		SessionTimeout: session.DefaultIdleTimeout,
		PollInterval:   settlement.DefaultPollInterval,
		LogLevel:       "info",
	})
}

// AddNetwork configures and dials one ledger network.
func (f *FreePay) AddNetwork(cfg types.NetworkConfig) error {
	if err := utils.ValidateNetworkConfig(&cfg); err != nil {
		return err
	}

	client, err := clients.NewEVMClient(cfg.Network, cfg.RPCUrl)
	if err != nil {
		return types.Errorf(types.ErrNetworkError,
			"failed to create client for %s: %v", cfg.Network, err)
	}

	f.sources[cfg.Network] = balance.NetworkSource{Config: cfg, Ledger: client}
	f.log.Info("network added", map[string]any{
		"network": cfg.Network.String(),
		"tokens":  len(cfg.Tokens),
	})
	return nil
}

// AddLedger registers a pre-built ledger client, mainly for tests and
// custom transports.
func (f *FreePay) AddLedger(cfg types.NetworkConfig, ledger clients.Ledger) error {
	if !cfg.Network.IsSupported() {
		return types.Errorf(types.ErrUnsupportedNetwork, "unsupported network: %s", cfg.Network)
	}
	f.sources[cfg.Network] = balance.NetworkSource{Config: cfg, Ledger: ledger}
	return nil
}

// NewCardSession starts a payer-side session. The returned machine is fed
// raw command frames by the contactless driver and produces the response
// for each.
func (f *FreePay) NewCardSession(provider session.AddressProvider, launcher session.WalletLauncher) *session.Machine {
	return f.registry.New(provider, launcher)
}

// CloseSession drops a session from the registry.
func (f *FreePay) CloseSession(id string) {
	f.registry.Remove(id)
}

// PreparePayment is the collector-side routing pass: aggregate the payer's
// balances, pick an asset, and fix the plan plus its request URI.
func (f *FreePay) PreparePayment(
	ctx context.Context,
	account types.AccountID,
	amount decimal.Decimal,
	destination string,
) (types.PaymentPlan, string, error) {
	if err := utils.ValidateAddress(destination); err != nil {
		return types.PaymentPlan{}, "", types.Errorf(types.ErrInvalidAccount, "destination: %v", err)
	}

	agg := balance.NewAggregator(f.sourceList(), f.timeout, f.log, f.rec)
	balances := agg.Fetch(ctx, account)

	plan, err := routing.Plan(balances, amount, destination)
	if err != nil {
		return types.PaymentPlan{}, "", err
	}

	uri := eip681.Encode(plan)
	f.log.Info("payment routed", map[string]any{
		"network": plan.Asset.Network.String(),
		"symbol":  plan.Asset.Symbol,
		"amount":  amount.String(),
	})
	return plan, uri, nil
}

// WatchSettlement blocks until the planned transfer is confirmed on-chain
// or the deadline passes. It is independent of any session lifetime and
// honors ctx cancellation.
func (f *FreePay) WatchSettlement(
	ctx context.Context,
	plan types.PaymentPlan,
	deadline time.Time,
) (settlement.Outcome, error) {
	src, ok := f.sources[plan.Asset.Network]
	if !ok {
		return settlement.Outcome{}, types.Errorf(types.ErrUnsupportedNetwork,
			"no client for network %s", plan.Asset.Network)
	}

	w := settlement.NewWatcher(src.Ledger, plan.Asset.Network, f.config.PollInterval, f.log, f.rec)
	return w.Watch(ctx, plan, deadline), nil
}

// Supported lists the configured networks.
func (f *FreePay) Supported() *types.SupportedResponse {
	out := &types.SupportedResponse{}
	for n, src := range f.sources {
		out.Networks = append(out.Networks, types.SupportedItem{
			Network: n.String(),
			ChainID: n.ChainID(),
			Testnet: n.IsTestnet(),
			Rollup:  n.IsRollup(),
			Native:  balance.NativeSymbol(n),
			Tokens:  len(src.Config.Tokens),
		})
	}
	return out
}

// Close releases all network clients.
func (f *FreePay) Close() {
	for _, src := range f.sources {
		src.Ledger.Close()
	}
}

func (f *FreePay) sourceList() []balance.NetworkSource {
	out := make([]balance.NetworkSource, 0, len(f.sources))
	for _, src := range f.sources {
		out = append(out, src)
	}
	return out
}

// Version information.
const Version = "1.0.0"
