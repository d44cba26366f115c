package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/pairsniper/internal/blob/s3"
	"github.com/alanyoungcy/pairsniper/internal/cache/redis"
	"github.com/alanyoungcy/pairsniper/internal/chain"
	"github.com/alanyoungcy/pairsniper/internal/config"
	"github.com/alanyoungcy/pairsniper/internal/crypto"
	"github.com/alanyoungcy/pairsniper/internal/domain"
	"github.com/alanyoungcy/pairsniper/internal/engine"
	"github.com/alanyoungcy/pairsniper/internal/executor"
	"github.com/alanyoungcy/pairsniper/internal/metrics"
	"github.com/alanyoungcy/pairsniper/internal/notify"
	"github.com/alanyoungcy/pairsniper/internal/oracle"
	"github.com/alanyoungcy/pairsniper/internal/policy"
	"github.com/alanyoungcy/pairsniper/internal/position"
	"github.com/alanyoungcy/pairsniper/internal/server/ws"
	"github.com/alanyoungcy/pairsniper/internal/store/memory"
	"github.com/alanyoungcy/pairsniper/internal/store/postgres"
	"github.com/alanyoungcy/pairsniper/internal/store/sqlite"
	"github.com/alanyoungcy/pairsniper/internal/trade"
)

// Dependencies bundles everything the run loop and the status server need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Wallet common.Address
	Base   common.Address
	Router common.Address

	Book    *position.Book
	Manager *position.Manager
	Loop    *engine.Loop
	Metrics *metrics.Metrics

	// Hub is nil unless the status server is enabled.
	Hub *ws.Hub
	// WalletLock is nil unless Redis is configured.
	WalletLock domain.Lock
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	log := logger.With(slog.String("component", "wire"))
	deps := &Dependencies{
		Wallet: common.HexToAddress(cfg.Wallet.Address),
		Base:   common.HexToAddress(cfg.Chain.BaseTokenAddress),
		Router: common.HexToAddress(cfg.Chain.RouterAddress),
	}

	// --- Signing key ---
	key, err := crypto.LoadKey(crypto.KeySource{
		RawPrivateKey: cfg.Wallet.PrivateKey,
		KeyFilePath:   cfg.Wallet.EncryptedKeyPath,
		KeyPassword:   cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: wallet key: %w", err))
	}
	signer := crypto.NewTxSigner(key, cfg.Chain.ChainID)
	if signer.Address() != deps.Wallet {
		return fail(fmt.Errorf("wire: wallet.address %s does not match the key's address %s",
			deps.Wallet.Hex(), signer.Address().Hex()))
	}

	// --- RPC ---
	client, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, client.Close)

	// --- Redis: wallet lock and event bus ---
	var (
		redisClient *redis.Client
		bus         domain.EventBus
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		lock, err := redis.NewLockManager(redisClient).Acquire(ctx, walletLockKey(deps.Wallet), cfg.Redis.LockTTL.Duration)
		if err != nil {
			return fail(fmt.Errorf("wire: wallet lock: %w", err))
		}
		closers = append(closers, lock.Release)
		deps.WalletLock = lock
		bus = redis.NewEventBus(redisClient)
	}

	// --- Position store ---
	store, closeStore, err := openStore(ctx, cfg, redisClient)
	if err != nil {
		return fail(err)
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	deps.Book = position.NewBook(deps.Wallet, store, logger)
	deps.Metrics = metrics.New(deps.Book.Len)

	// --- Chain bindings ---
	router := chain.NewRouter(client, deps.Router)
	factory, err := router.Factory(ctx)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	log.Info("router bound",
		slog.String("router", deps.Router.Hex()),
		slog.String("factory", factory.Hex()),
	)
	erc20 := chain.NewERC20(client)
	feed := chain.NewPairFeed(client, factory, cfg.Chain.MaxBlockRange, logger)

	exec := executor.New(client, signer, executor.Config{
		ReceiptTimeout:      cfg.Chain.ReceiptTimeout.Duration,
		ReceiptPollInterval: cfg.Chain.ReceiptPollInterval.Duration,
	}, deps.Metrics, logger)

	var bridge common.Address
	if cfg.Chain.BridgeTokenAddress != "" {
		bridge = common.HexToAddress(cfg.Chain.BridgeTokenAddress)
	}
	quoter := oracle.New(router, erc20, deps.Base, bridge, logger)

	swapper := trade.NewSwapper(exec, router, erc20, deps.Wallet, deps.Base, trade.Config{
		GasPrice:        decimal.NewFromFloat(cfg.Chain.GasPriceGwei).Shift(9).BigInt(),
		SwapGasLimit:    cfg.Chain.SwapGasLimit,
		ApproveGasLimit: cfg.Chain.ApproveGasLimit,
		Deadline:        cfg.Chain.Deadline.Duration,
		FeeOnTransfer:   cfg.Chain.FeeOnTransfer,
	})

	// --- Decision policy ---
	profit := decimal.NewFromFloat(cfg.Trading.ProfitMarginPct)
	stopLoss := decimal.NewFromFloat(cfg.Trading.StopLossPct)
	decider := &policy.Threshold{
		ProfitMarginPct: profit,
		StopLossPct:     stopLoss,
		Logger:          logger.With(slog.String("component", "policy")),
	}
	if cfg.Advisory.Enabled {
		completer := policy.NewOpenAICompleter(cfg.Advisory.APIKey, cfg.Advisory.BaseURL, cfg.Advisory.Model, float32(cfg.Advisory.Temperature))
		decider.Advisor = policy.NewTextAdvisor(completer, profit, stopLoss, cfg.Advisory.Timeout.Duration, logger)
		log.Info("advisory policy enabled", slog.String("model", cfg.Advisory.Model))
	}

	// --- Lifecycle events ---
	events := notify.Fanout{}
	if bus != nil {
		events = append(events, notify.NewBusPublisher(bus, cfg.Redis.EventsChannel))
	}
	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(bus, cfg.Redis.EventsChannel, logger)
		// With a bus the hub relays from the channel; without one it is fed
		// directly.
		if bus == nil {
			events = append(events, deps.Hub)
		}
	}
	if senders := notifySenders(cfg.Notify); len(senders) > 0 {
		events = append(events, notify.NewNotifier(senders, cfg.Notify.Events, logger))
	}

	// --- Positions and loop ---
	averaging, err := position.ParseAveraging(cfg.Trading.Averaging)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Manager = position.NewManager(quoter, decider, swapper, deps.Book, events, deps.Metrics, position.Config{
		Wallet:             deps.Wallet,
		BuyAmount:          decimal.NewFromFloat(cfg.Trading.BuyAmount),
		EntryQuoteAttempts: cfg.Trading.EntryQuoteAttempts,
		EntryQuoteDelay:    cfg.Trading.EntryQuoteDelay.Duration,
		Averaging:          averaging,
	}, logger)

	if err := deps.Book.Load(ctx); err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}

	deps.Loop = engine.New(feed, quoter, deps.Manager, deps.Base, engine.Config{
		DiscoveryInterval: cfg.Trading.DiscoveryInterval.Duration,
		MonitorInterval:   cfg.Trading.MonitorInterval.Duration,
		ErrorBackoff:      cfg.Trading.ErrorBackoff.Duration,
		SeenTTL:           cfg.Trading.SeenTTL.Duration,
	}, logger)
	deps.Loop.SetObserver(deps.Metrics)

	return deps, cleanup, nil
}

// openStore builds the configured position store. The returned close
// function may be nil.
func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (domain.PositionStore, func(), error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "memory":
		return memory.NewPositionStore(), nil, nil

	case "sqlite":
		st, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		return st, func() { _ = st.Close() }, nil

	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				pgClient.Close()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		return postgres.NewPositionStore(pgClient.Pool()), pgClient.Close, nil

	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("wire: redis store backend needs redis.addr")
		}
		return redis.NewPositionStore(redisClient), nil, nil

	case "s3":
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		return s3blob.NewPositionStore(s3Client.S3(), s3Client.Bucket(), cfg.S3.Prefix), nil, nil

	default:
		return nil, nil, fmt.Errorf("wire: unknown store backend %q", cfg.Store.Backend)
	}
}

func notifySenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}

// walletLockKey is the Redis key that makes one process the only writer for
// a wallet's nonce sequence.
func walletLockKey(wallet common.Address) string {
	return "sniper:wallet:" + strings.ToLower(wallet.Hex())
}

var _ executor.Backend = (*ethclient.Client)(nil)
