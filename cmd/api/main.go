// server/cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"freshchain-ledger-server/config"
	"freshchain-ledger-server/internal/api/routes"
	"freshchain-ledger-server/internal/auth"
	"freshchain-ledger-server/internal/blockchain"
	"freshchain-ledger-server/internal/database"
	"freshchain-ledger-server/internal/ledger"
	"freshchain-ledger-server/internal/notify"
	"freshchain-ledger-server/internal/s3"
	"freshchain-ledger-server/internal/socket"

	"github.com/fatih/color"
)

func main() {
	color.Cyan("FreshChain ledger server")

	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	owner, _ := cfg.OwnerAddress()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. MongoDB: accounts and the ledger journal
	client, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("Could not connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.Mongo.DBName)

	users := database.NewUserStore(db)
	journal := database.NewJournal(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to prepare users collection: %v", err)
	}
	if err := journal.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to prepare ledger journal: %v", err)
	}
	if err := database.SeedAdmin(ctx, users, cfg); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	// 3. Notification sinks
	hub := socket.NewHub()
	sinks := notify.NewFanout(hub)

	if cfg.Kafka.Broker != "" {
		kp := notify.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic)
		defer kp.Close()
		sinks.Add(kp)
		color.Green("✓ Kafka publisher: %s/%s", cfg.Kafka.Broker, cfg.Kafka.Topic)
	}
	if cfg.RabbitMQ.URL != "" {
		rp, err := notify.DialRabbit(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rp.Close()
		sinks.Add(rp)
		color.Green("✓ RabbitMQ publisher: queue %s", cfg.RabbitMQ.Queue)
	}
	if cfg.Fabric.Enabled {
		fabricSetup, err := blockchain.Initialize(cfg.Fabric)
		if err != nil {
			log.Fatalf("Failed to initialize Fabric setup: %v", err)
		}
		defer fabricSetup.Close()
		sinks.Add(blockchain.NewAnchor(fabricSetup.Contract))
		color.Green("✓ Fabric anchoring: %s/%s", cfg.Fabric.ChannelName, cfg.Fabric.ChaincodeName)
	}

	// 4. Ledger, rebuilt from the journal
	l, err := ledger.New(owner,
		ledger.WithPolicy(cfg.Ledger.Policy.Ledger()),
		ledger.WithJournal(journal),
		ledger.WithPublisher(sinks),
	)
	if err != nil {
		log.Fatalf("Failed to create ledger: %v", err)
	}
	events, err := journal.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load ledger journal: %v", err)
	}
	if err := l.Restore(events); err != nil {
		log.Fatalf("Failed to replay ledger journal: %v", err)
	}
	color.Green("✓ Ledger owner %s, %d events replayed", owner.Hex(), len(events))
	if !cfg.Ledger.Policy.RestrictSensorData || !cfg.Ledger.Policy.RestrictArrival {
		color.Yellow("⚠ Relaxed ledger policy: %+v", cfg.Ledger.Policy.Ledger())
	}

	// 5. Optional history exports
	var uploader *s3.Uploader
	if cfg.S3.Bucket != "" {
		uploader, err = s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to create S3 uploader: %v", err)
		}
	} else {
		color.Yellow("⚠ S3 bucket not configured, history export disabled")
	}

	router := routes.SetupRouter(cfg.Server, routes.Dependencies{
		Ledger:     l,
		Users:      users,
		Issuer:     auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL()),
		Hub:        hub,
		S3Uploader: uploader,
	})

	// 6. Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		color.Green("✓ Starting API server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to run server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	l.Close()
	color.Cyan("Server stopped")
}
