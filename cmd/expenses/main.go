package main

import (
	"os"

	"expenses/internal/amqp"
	"expenses/internal/catalog"
	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/mcpserver"
	"expenses/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	logger.Info("Starting expenses server",
		"transport", cfg.Transport,
		"db_path", cfg.DBPath,
		"categories_path", cfg.CategoriesPath)

	repo := cli.InitSQLite(logger, cfg.DBPath)

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithAmountPolicy(cfg.AmountPolicy()),
		services.WithCloser(repo.Close),
	}

	// Event publishing is optional
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			repo.Close()
			os.Exit(1)
		}
		opts = append(opts, services.WithPublisher(amqpClient), services.WithCloser(amqpClient.Close))
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP publishing disabled - no AMQP_URL provided")
	}

	svc := services.NewExpenseService(repo, catalog.NewStore(cfg.CategoriesPath, logger), opts...)
	s := mcpserver.New(cfg.ServerName, svc, logger)

	ctx, cancel := cli.SignalContext(logger)
	err := mcpserver.Serve(ctx, s, mcpserver.TransportFromConfig(cfg), logger)
	cancel()

	if cerr := svc.Close(); cerr != nil {
		logger.Error("Failed to release resources", log.FieldError, cerr)
	}
	if err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
