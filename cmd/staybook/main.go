package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"staybook/internal/app"
	"staybook/internal/app/allocator"
	"staybook/internal/app/ledger"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/reservation"
	"staybook/internal/app/schedule"
	"staybook/internal/domain/availability"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/rooms"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/broker/logpub"
	"staybook/internal/infra/broker/rabbitmq"
	"staybook/internal/infra/config"
	mongostore "staybook/internal/infra/db/mongo"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/inbox"
	redislock "staybook/internal/infra/lock/redis"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
)

const (
	serviceName     = "staybook"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("staybook stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("staybook stopped")
}

// runtime holds the adapters selected by configuration.
type runtime struct {
	catalog     rooms.Catalog
	days        availability.Store
	bookings    booking.Repository
	outbox      appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
	locker      ledger.Locker
	publisher   appoutbox.Publisher
	relay       *outbox.Worker
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	rt := &runtime{checks: map[string]obs.Check{}}
	defer rt.close(logger)

	if err := rt.wirePublisher(cfg, logger); err != nil {
		return err
	}
	if err := rt.wireStorage(ctx, cfg, logger); err != nil {
		return err
	}
	if err := rt.wireLocker(ctx, cfg, logger); err != nil {
		return err
	}

	l := &ledger.Ledger{
		Store:      rt.days,
		Catalog:    rt.catalog,
		Locker:     rt.locker,
		MaxRetries: cfg.LedgerMaxRetries,
		Logger:     logger.With("component", "ledger"),
	}
	coordinator := &reservation.Coordinator{
		Catalog:       rt.catalog,
		Ledger:        l,
		Bookings:      rt.bookings,
		Outbox:        rt.outbox,
		Encoder:       appoutbox.JSONEventEncoder{},
		Logger:        logger.With("component", "reservation"),
		IDRetries:     cfg.BookingIDRetries,
		CommitTimeout: cfg.CommitTimeout,
		Locker:        rt.locker,
	}
	buses := app.Build(app.Deps{
		Coordinator: coordinator,
		Allocator: &allocator.Allocator{
			Catalog:  rt.catalog,
			Ledger:   l,
			Limit:    cfg.SearchLimit,
			MaxRooms: cfg.SearchMaxRooms,
			Logger:   logger.With("component", "allocator"),
		},
		Ledger:        l,
		Outbox:        rt.outbox,
		Idempotency:   rt.idempotency,
		RequirePrefix: cfg.RequireUserPrefix,
		Logger:        logger,
	})

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: rt.checks}, ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Search:       ginserver.SearchHandler{Queries: buses.Queries, Logger: logger},
		Availability: ginserver.AvailabilityHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.Storage, "broker", cfg.Broker, "lock", cfg.LockBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		sweeper := &schedule.Sweeper{Completer: coordinator, Interval: cfg.CompletionInterval, Logger: logger.With("component", "sweeper")}
		return ignoreCancel(sweeper.Run(gctx))
	})
	if rt.relay != nil {
		g.Go(func() error { return ignoreCancel(rt.relay.Run(gctx)) })
	}
	if cfg.Broker == config.BrokerKafka {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, kafka.NewConfig(serviceName+"-consumer"), &kafka.CheckoutHandler{
			Bus:    buses.Commands,
			Inbox:  rt.inbox,
			Logger: logger.With("component", "checkout_consumer"),
		}, logger)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return consumer.Close() })
		topic := cfg.KafkaTopicPrefix + "stay.events.v1"
		g.Go(func() error { return ignoreCancel(consumer.Run(gctx, []string{topic})) })
	}
	return g.Wait()
}

func (rt *runtime) wirePublisher(cfg config.Config, logger *slog.Logger) error {
	switch cfg.Broker {
	case config.BrokerKafka:
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig(serviceName))
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		rt.publisher = producer
		rt.closers = append(rt.closers, func(context.Context) error { return producer.Close() })
	case config.BrokerRabbitMQ:
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		rt.publisher = publisher
		rt.closers = append(rt.closers, func(context.Context) error { return publisher.Close() })
	default:
		rt.publisher = logpub.Publisher{Logger: logger.With("component", "events")}
	}
	return nil
}

func (rt *runtime) wireStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	fixtures, err := loadFixtures(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Storage != config.StorageMongo {
		catalog, err := memory.NewCatalog(fixtures...)
		if err != nil {
			return err
		}
		rt.catalog = catalog
		rt.days = memory.NewDayStore()
		rt.bookings = memory.NewBookingRepository()
		rt.idempotency = memory.NewIdempotencyStore()
		rt.inbox = memory.NewInbox()
		rt.outbox = &memory.Outbox{Publisher: rt.publisher, TopicPrefix: cfg.KafkaTopicPrefix, Source: serviceName}
		return nil
	}

	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	rt.closers = append(rt.closers, client.Close)
	rt.checks["mongo"] = client.Ping

	catalog, err := mongostore.NewRoomCatalog(ctx, client.DB)
	if err != nil {
		return err
	}
	for _, room := range fixtures {
		if err := catalog.Upsert(ctx, room); err != nil {
			return fmt.Errorf("seed room %s: %w", room.ID, err)
		}
	}
	days, err := mongostore.NewDayStore(ctx, client.DB)
	if err != nil {
		return err
	}
	bookings, err := mongostore.NewBookingRepository(ctx, client.DB)
	if err != nil {
		return err
	}
	idempotency, err := mongostore.NewIdempotencyStore(ctx, client.DB)
	if err != nil {
		return err
	}
	events, err := outbox.NewStore(ctx, client.DB)
	if err != nil {
		return err
	}
	consumed, err := inbox.NewStore(ctx, client.DB, serviceName+"-checkout")
	if err != nil {
		return err
	}
	rt.catalog, rt.days, rt.bookings, rt.idempotency, rt.inbox = catalog, days, bookings, idempotency, consumed
	rt.outbox = events
	rt.relay = &outbox.Worker{
		Queue:       events,
		Publisher:   rt.publisher,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      serviceName,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger.With("component", "outbox"),
	}
	return nil
}

func (rt *runtime) wireLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	switch cfg.LockBackend {
	case config.LockNone:
	case config.LockRedis:
		client, err := redislock.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
		rt.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		rt.locker = &redislock.Locker{
			Client: client,
			Prefix: serviceName + ":lock:",
			TTL:    cfg.LockTTL,
			Logger: logger.With("component", "lock"),
		}
	default:
		if cfg.Storage == config.StorageMongo {
			logger.Warn("in-process room and booking locks with shared storage serialize only this replica")
		}
		rt.locker = memory.NewLocker()
	}
	return nil
}

// close releases adapters in reverse order of acquisition.
func (rt *runtime) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			logger.Warn("close adapter", "error", err)
		}
	}
}

// loadFixtures reads the room catalog seed. Rooms priced in another currency
// than the configured one are rejected.
func loadFixtures(cfg config.Config, logger *slog.Logger) ([]rooms.Room, error) {
	if cfg.RoomsFixtures == "" {
		logger.Info("no room fixtures configured")
		return nil, nil
	}
	items, err := memory.ReadRooms(cfg.RoomsFixtures)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("room fixtures file not found, skipping", "path", cfg.RoomsFixtures)
			return nil, nil
		}
		return nil, err
	}
	var errs []error
	for _, room := range items {
		if !strings.EqualFold(room.NightlyPrice.Currency, cfg.Currency) {
			errs = append(errs, fmt.Errorf("room %s priced in %s, expected %s", room.ID, room.NightlyPrice.Currency, cfg.Currency))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	logger.Info("room fixtures loaded", "path", cfg.RoomsFixtures, "rooms", len(items))
	return items, nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
