package app

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fixora/wallet/internal/bank"
	"github.com/fixora/wallet/internal/cache"
	"github.com/fixora/wallet/internal/config"
	"github.com/fixora/wallet/internal/env"
	"github.com/fixora/wallet/internal/errHandler"
	"github.com/fixora/wallet/internal/file"
	"github.com/fixora/wallet/internal/gateway"
	"github.com/fixora/wallet/internal/helper"
	"github.com/fixora/wallet/internal/ledger"
	"github.com/fixora/wallet/internal/pricing"
	"github.com/fixora/wallet/internal/refund"
	"github.com/fixora/wallet/internal/repository"
	"github.com/fixora/wallet/internal/smtp"
	"github.com/fixora/wallet/internal/stream"
	"github.com/fixora/wallet/internal/topup"
	"github.com/fixora/wallet/internal/withdrawal"
	"github.com/joho/godotenv"
)

// Essential services and resources are exposed to the application
// this makes it possible for methods to have access to these items as and when they need them
type Application struct {
	Config       config.Config
	DB           repository.Database
	Logger       *slog.Logger
	Mailer       *smtp.Mailer
	WG           sync.WaitGroup
	ErrHandler   *errHandler.ErrorRepository
	helper       *helper.HelperRepository
	Kafka        *stream.KafkaStream
	Cache        *cache.Cache
	FileUploader *file.FileUploader
	BankTransfer bank.Transfer

	Ledger     *ledger.Ledger
	Topup      *topup.Reconciler
	Withdrawal *withdrawal.Engine
	Refund     *refund.Resolver
	Pricing    pricing.Table
}

func NewApplication(logger *slog.Logger) (*Application, error) {
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", "error", err)
	}

	var cfg config.Config

	// config values are loaded from the .env file
	// Default values are provided for these items and these should strictly be values for development mode only
	// make sure no production-level value is exposed as default value here
	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)

	cfg.Db.Dsn = env.GetString("DB_DSN", "user:pass@localhost:5432/db")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	// server errors won't be sent via email if the NOTIFICATIONS_EMAIL wasn't set in the .env file
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "example_username")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "pa55word")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "Fixora <no_reply@fixora.example>")

	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "localhost:9092")
	cfg.RedisServer = env.GetString("REDIS_SERVER", "localhost:6379")

	cfg.FileUploader.ApiKey = env.GetString("CLOUDINARY_API_KEY", "")
	cfg.FileUploader.CloudName = env.GetString("CLOUDINARY_CLOUD_NAME", "")
	cfg.FileUploader.ApiSecret = env.GetString("CLOUDINARY_API_SECRET", "")

	cfg.Gateway.BaseURL = env.GetString("GATEWAY_BASE_URL", "http://localhost:7100")
	cfg.Gateway.Secret = env.GetString("GATEWAY_SECRET", "gateway-dev-secret")

	cfg.BankTransfer.BaseURL = env.GetString("BANK_TRANSFER_BASE_URL", "http://localhost:7200")

	// All amounts are in paise.
	cfg.Topup.MinAmount = env.GetInt64("TOPUP_MIN_AMOUNT", 10000)

	cfg.Withdrawal.MinAmount = env.GetInt64("WITHDRAWAL_MIN_AMOUNT", 50000)
	cfg.Withdrawal.MaxAmount = env.GetInt64("WITHDRAWAL_MAX_AMOUNT", 100000000)
	cfg.Withdrawal.CommissionRate = env.GetFloat64("WITHDRAWAL_COMMISSION_RATE", 15)
	cfg.Withdrawal.AutoApproveCeiling = env.GetInt64("WITHDRAWAL_AUTO_APPROVE_CEILING", 5000000)

	cfg.Pricing.Brackets = env.GetString("PRICING_BRACKETS", "0-2:5000000,2-5:8000000,5-10:12000000")
	cfg.Pricing.FlatMax = env.GetInt64("PRICING_FLAT_MAX", 20000000)

	db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mailer, err := smtp.NewMailer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	errorHandler := errHandler.New(cfg.Notifications.Email, cfg.BaseURL, mailer, logger)

	kafkaStream := stream.New(cfg.KafkaServers)

	redisCache := cache.New(cfg.RedisServer, 0)

	fileUploader := file.New(cfg.FileUploader.CloudName, cfg.FileUploader.ApiKey, cfg.FileUploader.ApiSecret)

	pricingTable, err := pricing.ParseBrackets(cfg.Pricing.Brackets, cfg.Pricing.FlatMax)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pricing brackets: %w", err)
	}

	ledgerStore := ledger.New(db, errorHandler.ReportReconciliationAlert)

	app := &Application{
		Config:       cfg,
		DB:           db,
		Logger:       logger,
		Mailer:       mailer,
		ErrHandler:   errorHandler,
		Kafka:        kafkaStream,
		Cache:        redisCache,
		FileUploader: fileUploader,
		BankTransfer: bank.New(cfg.BankTransfer.BaseURL),
		Ledger:       ledgerStore,
		Topup:        topup.New(db, ledgerStore, gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.Secret), redisCache, cfg.Gateway.Secret, cfg.Topup.MinAmount),
		Refund:       refund.New(db, ledgerStore),
		Pricing:      pricingTable,
	}

	app.Withdrawal = withdrawal.New(db, ledgerStore, kafkaStream, withdrawal.Config{
		MinAmount:          cfg.Withdrawal.MinAmount,
		MaxAmount:          cfg.Withdrawal.MaxAmount,
		CommissionRate:     cfg.Withdrawal.CommissionRate,
		AutoApproveCeiling: cfg.Withdrawal.AutoApproveCeiling,
	})

	app.helper = helper.New(&cfg.BaseURL, &app.WG, errorHandler)

	return app, nil
}
