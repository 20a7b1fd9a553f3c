package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cache"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/cart"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/catalog"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/discount"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/events"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/httpapi"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/repository"
	"github.com/Andriipalamarchuk/ecommerce-backend-go/internal/user"
)

type Config struct {
	HTTPPort        string
	DBHost          string
	DBPort          int
	DBUser          string
	DBPassword      string
	DBName          string
	MigrationsPath  string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	KafkaTopic      string
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          dbPort,
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "ecommerce"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "migrations"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:    brokers,
		KafkaTopic:      getEnv("KAFKA_TOPIC", "cart-events"),
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cred := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	pg, err := repository.NewPostgres(cred, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pg.Close()

	if err := pg.RunMigrations(cred); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	cacheClient := cache.New(rdb, cache.CleanAllPattern, log)
	defer cacheClient.Close()

	// the cache connects in the background: the server starts serving with a
	// cold cache and every read degrades to the store until redis answers
	connectCtx, cancelConnect := context.WithCancel(context.Background())
	defer cancelConnect()
	go func() {
		if err := cacheClient.Connect(connectCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("cache connect loop stopped")
		}
	}()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer kafkaPub.Close()
		publisher = kafkaPub
	}

	catalogSvc := catalog.NewService(pg, cacheClient, log)
	discountSvc := discount.NewService(pg, cacheClient, log)
	cartSvc := cart.NewService(pg, catalogSvc, discountSvc, cacheClient, publisher, log)
	userSvc := user.NewService(pg, cacheClient, log)

	router := httpapi.NewRouter(
		httpapi.NewCartHandler(cartSvc),
		httpapi.NewProductHandler(catalogSvc),
		httpapi.NewDiscountHandler(discountSvc),
		httpapi.NewUserHandler(userSvc),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "ecommerce-backend"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
}
