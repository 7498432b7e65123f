package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/venue-ticketing/internal/adapters/mongo"
	"github.com/robertarktes/venue-ticketing/internal/adapters/rabbit"
	smtpadapter "github.com/robertarktes/venue-ticketing/internal/adapters/smtp"
	"github.com/robertarktes/venue-ticketing/internal/config"
	"github.com/robertarktes/venue-ticketing/internal/observability"
	"github.com/robertarktes/venue-ticketing/internal/projection"
)

const queue = "ticketing.projection"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "ticketing-consumer")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.MongoDatabase)
	catalog := mongoadapter.NewCatalogRepository(db, logger)
	if err := catalog.EnsureIndexes(ctx); err != nil {
		log.Fatalf("failed to create catalog indexes: %v", err)
	}

	var mailer projection.Mailer
	if cfg.SMTP.Addr != "" {
		m, err := smtpadapter.NewMailer(cfg.SMTP)
		if err != nil {
			log.Fatalf("failed to configure mail: %v", err)
		}
		mailer = m
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, queue, projection.Bindings...)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	logger.WithField("queue", queue).Info("consumer started")
	projection.NewHandler(catalog, mongoadapter.NewAuditLogger(db, logger), mailer, logger).Consume(ctx, deliveries)
	logger.Info("consumer exited")
}
