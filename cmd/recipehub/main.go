package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"

	"recipehub/internal/app/assembly"
	"recipehub/internal/app/commands"
	connectionsapp "recipehub/internal/app/handlers/connections"
	conversationsapp "recipehub/internal/app/handlers/conversations"
	groupsapp "recipehub/internal/app/handlers/groups"
	recipesapp "recipehub/internal/app/handlers/recipes"
	"recipehub/internal/app/middleware"
	"recipehub/internal/app/outbox"
	"recipehub/internal/app/queries"
	"recipehub/internal/app/uow"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
	"recipehub/internal/infra/broker/kafka"
	"recipehub/internal/infra/config"
	mongostore "recipehub/internal/infra/db/mongo"
	ginserver "recipehub/internal/infra/http/gin"
	"recipehub/internal/infra/inbox"
	"recipehub/internal/infra/obs"
	outboxworker "recipehub/internal/infra/outbox"
	"recipehub/internal/infra/storage/memory"
	"recipehub/internal/infra/storage/s3"
)

const (
	recipeEventsTopic = "recipe.events.v1"
	retryBackoff      = 20 * time.Millisecond
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger(getenv("APP_ENV", "dev"))
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	st, err := openStorage(cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err, "mode", cfg.StorageMode)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			logger.Warn("storage close failed", "error", err)
		}
	}()

	if err := loadFixtures(ctx, cfg.FixturesPath, st.users, st.recipes, logger); err != nil {
		logger.Warn("fixtures load failed", "error", err, "path", cfg.FixturesPath)
	}

	metrics := obs.NewMetrics()
	producer := openProducer(cfg, logger)
	if producer != nil {
		defer producer.Close()
	}
	if mem, ok := st.outbox.(*memory.Outbox); ok {
		mem.Deliver = func(_ context.Context, rec outbox.EventRecord) error {
			logger.Debug("domain event", "event", rec.Name, "aggregate", rec.Aggregate, "event_id", rec.ID)
			return nil
		}
	}

	cmds, qs := buildBuses(cfg, st, metrics, logger)
	uploader := openUploader(cfg, logger)

	readiness := []func() error{st.ready}
	if client, ok := uploader.(*s3.Client); ok {
		readiness = append(readiness, func() error {
			readyCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return client.Ready(readyCtx)
		})
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: obs.AllReady(readiness...),
	}, ginserver.Handlers{
		Connection:   ginserver.ConnectionHandler{Commands: cmds, Queries: qs, Logger: logger},
		Group:        ginserver.GroupHandler{Commands: cmds, Queries: qs, Logger: logger},
		Conversation: ginserver.ConversationHandler{Commands: cmds, Queries: qs, Logger: logger},
		Media:        ginserver.MediaHandler{Uploader: uploader, Logger: logger},
		Metrics:      metrics,
	})

	g, gctx := errgroup.WithContext(ctx)

	if store, ok := st.outbox.(*outboxworker.MongoStore); ok && producer != nil {
		worker := &outboxworker.Worker{
			Store:       store,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger.With("component", "outbox-relay"),
			OnRelay:     metrics.OutboxRelayed,
		}
		g.Go(func() error { return worker.Run(gctx) })
	}

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, &kafka.RecipeEvents{
			Commands:    cmds,
			Inbox:       st.inbox,
			Logger:      logger.With("component", "recipe-events"),
			OnProcessed: metrics.InboxProcessed,
		}, logger)
		if err != nil {
			logger.Error("kafka consumer init failed", "error", err)
		} else {
			topic := cfg.KafkaTopicPrefix + recipeEventsTopic
			g.Go(func() error {
				<-gctx.Done()
				return consumer.Close()
			})
			g.Go(func() error {
				if err := consumer.Run(gctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("recipe events consumer stopped", "error", err, "topic", topic)
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("recipehub stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("recipehub stopped")
}

type recipeStore interface {
	domainrecipe.Repository
	recipesapp.PreviewRemover
}

// storage is the set of adapters selected by STORAGE_MODE.
type storage struct {
	factory     uow.UoWFactory
	users       domainuser.Repository
	recipes     recipeStore
	outbox      outbox.Outbox
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
	ready       func() error
	close       func(context.Context) error
}

func openStorage(cfg config.Config, logger *slog.Logger) (storage, error) {
	if !cfg.UsesMongo() {
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return storage{
			factory:     store.Factory(),
			users:       store.Users,
			recipes:     store.Recipes,
			outbox:      memory.NewOutbox(),
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			inbox:       memory.NewInbox(),
			ready:       func() error { return nil },
			close:       func(context.Context) error { return nil },
		}, nil
	}

	client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, err
	}
	factory := mongostore.NewFactory(client.DB)
	users := mongostore.NewUserRepository(client.DB)
	recipes := mongostore.NewRecipeRepository(client.DB)
	logger.Info("using mongo storage", "db", cfg.MongoDB)
	return storage{
		factory:     factory,
		users:       users,
		recipes:     recipes,
		outbox:      outboxworker.NewMongoStore(client.DB),
		idempotency: mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
		inbox:       inbox.NewStore(client.DB, cfg.KafkaGroupID),
		ready: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(ctx)
		},
		close: client.Close,
	}, nil
}

func buildBuses(cfg config.Config, st storage, metrics *obs.Metrics, logger *slog.Logger) (commands.Bus, queries.Bus) {
	enc := outbox.JSONEventEncoder{}
	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()

	(&connectionsapp.CommandHandler{UoWFactory: st.factory, Outbox: st.outbox, Encoder: enc, Logger: logger}).Register(commandBus)
	(&connectionsapp.QueryHandler{UoWFactory: st.factory}).Register(queryBus)
	(&groupsapp.Handler{UoWFactory: st.factory, Outbox: st.outbox, Encoder: enc, Logger: logger}).Register(commandBus, queryBus)
	(&conversationsapp.Handler{
		UoWFactory: st.factory,
		Outbox:     st.outbox,
		Encoder:    enc,
		Assembly: assembly.Options{
			MaxReplyDepth: cfg.MaxReplyDepth,
			Concurrency:   cfg.AssemblyConcurrency,
			Logger:        logger,
			OnDrop:        metrics.AssemblyDropped,
		},
		Logger:       logger,
		Retries:      cfg.UpdateRetries,
		RetryBackoff: retryBackoff,
	}).Register(commandBus, queryBus)
	(&recipesapp.Handler{
		UoWFactory:   st.factory,
		Outbox:       st.outbox,
		Encoder:      enc,
		Previews:     st.recipes,
		Logger:       logger,
		Retries:      cfg.UpdateRetries,
		RetryBackoff: retryBackoff,
	}).Register(commandBus)

	validator := middleware.NewStructValidator()
	cmds := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Idempotency(st.idempotency, nil),
		middleware.Transaction(st.factory, nil),
		middleware.OutboxFlush(st.outbox, logger),
	)
	qs := middleware.ChainQueries(
		queryBus,
		middleware.QueryLogging(logger),
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)
	return cmds, qs
}

func openProducer(cfg config.Config, logger *slog.Logger) *kafka.Producer {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka disabled, domain events stay local")
		return nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, sarama.NewConfig())
	if err != nil {
		logger.Error("kafka producer init failed", "error", err, "brokers", strings.Join(cfg.KafkaBrokers, ","))
		return nil
	}
	return producer
}

func openUploader(cfg config.Config, logger *slog.Logger) s3.Uploader {
	if cfg.S3Endpoint == "" {
		logger.Info("s3 disabled, image uploads unavailable")
		return s3.NoopUploader{}
	}
	client, err := s3.NewClient(s3.Options{
		Endpoint:      cfg.S3Endpoint,
		UseSSL:        cfg.S3UseSSL,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicEndpoint,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("s3 init failed", "error", err, "endpoint", cfg.S3Endpoint)
		return s3.NoopUploader{}
	}
	return client
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
