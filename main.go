package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"boardsync/api"
	"boardsync/board"
	"boardsync/storage"
	"boardsync/stream"
)

func main() {
	logger := newLogger()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTable := os.Getenv("TASKS_TABLE")
	usersTable := os.Getenv("USERS_TABLE")
	activitiesTable := os.Getenv("ACTIVITIES_TABLE")
	if connStr == "" || tasksTable == "" || usersTable == "" || activitiesTable == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, tasksTable, usersTable, activitiesTable)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisOptions(redisConn))

	cacheTTL := envDur("CACHE_TTL", 30*time.Second)
	cached := storage.NewCache(store, rc, cacheTTL)

	var archive stream.Archiver
	if queueName := os.Getenv("EVENTS_QUEUE"); queueName != "" {
		a, err := storage.NewArchive(connStr, queueName)
		if err != nil {
			log.Fatalf("event archive: %v", err)
		}
		archive = a
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	eventsChannel := os.Getenv("BOARD_EVENTS_CHANNEL")
	if eventsChannel == "" {
		eventsChannel = "board-events"
	}
	hub := stream.NewHub()
	pub := stream.NewPublisher(rc, eventsChannel, archive, logger)
	svc := board.NewService(cached, pub, logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go stream.SubscribeEvents(ctx, logger, rc, eventsChannel, hub)

	var auth *api.Auth
	if os.Getenv("AUTH_TEST_MODE") == "1" {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		domain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Client-ID"},
	}))

	api.Register(e, svc, auth, hub, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// newLogger builds the service logger. DEBUG applies to it and to the
// package-level logger used for boot-time fatals.
func newLogger() *log.Logger {
	logger := log.New()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// parseRedisOptions accepts either a redis URL or the comma-separated
// host,password=...,ssl=... form managed environments hand out.
func parseRedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envDur(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return d
}
