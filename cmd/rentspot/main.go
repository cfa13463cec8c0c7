package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"rentspot/internal/app/chat"
	"rentspot/internal/app/commands"
	"rentspot/internal/app/directory"
	"rentspot/internal/app/ledger"
	"rentspot/internal/app/listings"
	"rentspot/internal/app/middleware"
	"rentspot/internal/app/outbox"
	"rentspot/internal/app/queries"
	authsvc "rentspot/internal/app/services/auth"
	domainauth "rentspot/internal/domain/auth"
	domainchat "rentspot/internal/domain/chat"
	domainledger "rentspot/internal/domain/ledger"
	domainlistings "rentspot/internal/domain/listings"
	domainuser "rentspot/internal/domain/user"
	"rentspot/internal/infra/broker/kafka"
	redisstore "rentspot/internal/infra/cache/redis"
	"rentspot/internal/infra/config"
	mongostore "rentspot/internal/infra/db/mongo"
	ginserver "rentspot/internal/infra/http/gin"
	"rentspot/internal/infra/inbox"
	"rentspot/internal/infra/obs"
	outboxinfra "rentspot/internal/infra/outbox"
	"rentspot/internal/infra/security"
	"rentspot/internal/infra/storage/memory"
	"rentspot/internal/infra/storage/scylla"
	"rentspot/internal/infra/validation"
	"rentspot/internal/infra/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rentspot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("rentspot stopped")
}

// backends holds the storage chosen by configuration.
type backends struct {
	users       domainuser.Repository
	sessions    domainauth.SessionStore
	ledger      domainledger.Store
	listings    domainlistings.Repository
	messages    domainchat.Store
	idempotency middleware.IdempotencyStore
	outbox      outbox.Outbox

	mongo   *mongostore.Client
	queue   outboxinfra.Queue
	checks  map[string]obs.Check
	closers []func(context.Context) error
}

func (b *backends) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			logger.Warn("backend close failed", "error", err)
		}
	}
}

func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{checks: map[string]obs.Check{}}
	if cfg.StoreBackend == config.BackendMongo || cfg.IdempotencyBackend == config.BackendMongo {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		b.mongo = client
		b.checks["mongo"] = client.Ping
		b.closers = append(b.closers, client.Close)
	}

	switch cfg.StoreBackend {
	case config.BackendMongo:
		db := b.mongo.DB
		users := mongostore.NewUserRepository(db)
		sessions := mongostore.NewSessionStore(db)
		ledgerStore := mongostore.NewLedgerStore(db)
		ads := mongostore.NewListingRepository(db)
		outboxStore := outboxinfra.NewStore(db)
		indexed := []mongostore.IndexedStore{users, sessions, ledgerStore, ads, outboxStore}
		b.users, b.sessions, b.ledger, b.listings = users, sessions, ledgerStore, ads
		b.outbox, b.queue = outboxStore, outboxStore

		if cfg.ChatStore == config.BackendScylla {
			session, err := scylla.NewSession(ctx, cfg, logger)
			if err != nil {
				b.close(logger)
				return nil, fmt.Errorf("scylla connect: %w", err)
			}
			b.messages = scylla.NewMessageStore(session, logger)
			b.closers = append(b.closers, func(context.Context) error { session.Close(); return nil })
		} else {
			messages := mongostore.NewMessageStore(db)
			indexed = append(indexed, messages)
			b.messages = messages
		}
		if err := mongostore.EnsureIndexes(ctx, indexed...); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
	default:
		b.users = memory.NewUserRepository()
		b.sessions = memory.NewSessionStore()
		b.ledger = memory.NewLedgerStore()
		b.listings = memory.NewListingRepository()
		b.messages = memory.NewMessageStore()
		b.outbox = memory.NewOutbox()
	}

	switch cfg.IdempotencyBackend {
	case config.BackendRedis:
		rdb, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			b.close(logger)
			return nil, err
		}
		b.idempotency = redisstore.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		b.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		b.closers = append(b.closers, func(context.Context) error { return rdb.Close() })
	case config.BackendMongo:
		store := mongostore.NewIdempotencyStore(b.mongo.DB, cfg.IdempotencyTTL)
		if err := store.EnsureIndexes(ctx); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		b.idempotency = store
	default:
		b.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	}
	logger.Info("backends ready",
		"store", cfg.StoreBackend,
		"chat_store", cfg.ChatStore,
		"idempotency", cfg.IdempotencyBackend,
	)
	return b, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	encoder := outbox.JSONEventEncoder{Origin: cfg.InstanceID}
	users := directory.Users{Repo: b.users}

	ledgerSvc := &ledger.Service{
		Store:   b.ledger,
		Names:   users,
		Outbox:  b.outbox,
		Encoder: encoder,
		Logger:  logger,
	}
	authService := &authsvc.Service{
		Users:       b.users,
		Sessions:    b.sessions,
		Passwords:   security.BcryptHasher{},
		Tokens:      security.RandomTokenGenerator{},
		Accounts:    ledgerSvc,
		SignupGrant: cfg.SignupGrant,
		SessionTTL:  cfg.SessionTTL,
		Logger:      logger,
	}
	router := &chat.Router{
		Store:    b.messages,
		Registry: chat.NewRegistry(logger),
		Profiles: users,
		Listings: directory.Listings{Repo: b.listings},
		Outbox:   b.outbox,
		Encoder:  encoder,
		Logger:   logger,
	}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	ledger.Register(commandBus, queryBus, ledgerSvc)
	chat.Register(commandBus, queryBus, router)
	listings.Register(commandBus, queryBus, &listings.PublishListingHandler{
		Listings: b.listings,
		Charger:  listings.LedgerCharger{Ledger: ledgerSvc},
		Fee:      cfg.ListingFee,
		Outbox:   b.outbox,
		Encoder:  encoder,
		Logger:   logger,
	})

	validator := validation.New()
	cmds := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Authorization(authsvc.ActorAuthorizer{}),
		middleware.Validation(validator),
		middleware.Idempotency(b.idempotency, nil),
		middleware.OutboxFlush(b.outbox, logger),
	)
	var readBackoff time.Duration
	if len(cfg.RetryBackoff) > 0 {
		readBackoff = cfg.RetryBackoff[0]
	}
	qs := middleware.ChainQueries(
		queryBus,
		middleware.QueryAuthorization(authsvc.ActorAuthorizer{}),
		middleware.QueryValidation(validator),
		middleware.RetryReads(readBackoff, domainledger.ErrPersistence, domainchat.ErrPersistence),
	)

	wsHandler := &ws.Handler{
		Router:    router,
		Commands:  cmds,
		Logger:    logger,
		RateLimit: rate.Limit(cfg.WSRateLimit),
		Burst:     cfg.WSRateBurst,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: b.checks}, ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Queries: qs, Logger: logger},
		Points:         ginserver.PointsHandler{Commands: cmds, Queries: qs, Logger: logger},
		Chat:           ginserver.ChatHandler{Commands: cmds, Queries: qs, Logger: logger},
		Listing:        ginserver.ListingHandler{Commands: cmds, Queries: qs, Logger: logger},
		WebSocket:      ginserver.WebSocketRoute(wsHandler, logger),
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
	})

	g, gctx := errgroup.WithContext(ctx)
	if cfg.RelayEnabled() {
		if err := startRelay(gctx, g, cfg, b, router, logger); err != nil {
			return err
		}
	} else {
		logger.Info("event relay disabled", "store", cfg.StoreBackend, "brokers", len(cfg.KafkaBrokers))
	}
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// startRelay ships outbox records to Kafka and feeds chat events from other
// instances back into the local rooms.
func startRelay(ctx context.Context, g *errgroup.Group, cfg config.Config, b *backends, router *chat.Router, logger *slog.Logger) error {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = "rentspot-" + cfg.InstanceID
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, saramaCfg)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	worker := &outboxinfra.Worker{
		Store:       b.queue,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		ID:          cfg.InstanceID,
		Backoff:     cfg.RetryBackoff,
	}

	inboxStore := inbox.NewStore(b.mongo.DB, cfg.KafkaGroupID)
	if err := inboxStore.EnsureIndexes(ctx); err != nil {
		_ = producer.Close()
		return fmt.Errorf("inbox indexes: %w", err)
	}
	relay := &kafka.ChatRelay{Applier: router, Inbox: inboxStore, Origin: cfg.InstanceID, Logger: logger}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, sarama.NewConfig(), relay, logger)
	if err != nil {
		_ = producer.Close()
		return fmt.Errorf("kafka consumer: %w", err)
	}
	b.closers = append(b.closers,
		func(context.Context) error { return producer.Close() },
		func(context.Context) error { return consumer.Close() },
	)

	topics := []string{outboxinfra.TopicFor(cfg.KafkaTopicPrefix, domainchat.EventMessageSent)}
	g.Go(func() error { return ignoreCanceled(worker.Run(ctx)) })
	g.Go(func() error { return ignoreCanceled(consumer.Run(ctx, topics)) })
	logger.Info("event relay started", "brokers", cfg.KafkaBrokers, "topics", topics, "group", cfg.KafkaGroupID)
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
