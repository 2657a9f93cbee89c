package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wondrousdigital/gateway/pkg/accounts"
	"github.com/wondrousdigital/gateway/pkg/config"
	"github.com/wondrousdigital/gateway/pkg/middleware"
	"github.com/wondrousdigital/gateway/pkg/rbac"
	"github.com/wondrousdigital/gateway/pkg/storage/postgres"
)

const usage = `Usage: gateway <command> [flags]

Commands:
  serve     Run the request gateway
  migrate   Apply the database schema and seed role permissions
  token     Mint a session token for a user
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := setupLogger(os.Getenv("GATEWAY_LOG_LEVEL"))

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(logger)
	case "migrate":
		err = runMigrate(logger)
	case "token":
		err = runToken(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func runMigrate(logger *logrus.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL: cfg.Database.URL,
		MaxConns:   2,
		MinConns:   1,
		Timeout:    cfg.Database.Timeout,
	}, nil)
	if err != nil {
		return err
	}
	defer cm.Close()

	logger.Info("Applying schema migrations")
	if err := rbac.Initialize(ctx, cm.Primary()); err != nil {
		return err
	}
	logger.Info("Migrations applied and role permissions seeded")
	return nil
}

// runToken mints a session token signed with GATEWAY_SESSION_SECRET.
// It is meant for operators and local development.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "User ID (UUID)")
	email := fs.String("email", "", "User email")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := uuid.Parse(*userID)
	if err != nil {
		return fmt.Errorf("invalid -user: %w", err)
	}

	sessions, err := middleware.NewJWTSessionStore(
		[]byte(os.Getenv("GATEWAY_SESSION_SECRET")),
		getEnv("GATEWAY_SESSION_ISSUER", "wondrousdigital"),
	)
	if err != nil {
		return err
	}

	token, err := sessions.Issue(accounts.User{ID: id, Email: *email}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
