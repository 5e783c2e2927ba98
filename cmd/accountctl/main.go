// Command accountctl performs staff-only account maintenance directly
// against the account database: creating staff users, changing roles,
// seeding fields of study and listing users.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"account-service/internal/auth"
	"account-service/internal/config"
	"account-service/internal/repository/sqlite"
	"account-service/internal/service"
)

const usage = `usage: accountctl <command> [flags]

commands:
  create-staff -email E [-name N] [-author]   create a staff user (password prompted)
  set-roles -email E [-staff=bool] [-author=bool]
  add-field -name N                           add a field of study
  list-users                                  list identified users
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	repos, err := sqlite.NewRepositories(ctx, db)
	if err != nil {
		return err
	}

	hasher, err := auth.NewHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	a := &app{
		users: service.NewUserService(repos.Users, repos.Fields, service.UserConfig{
			MinPasswordLength: cfg.Auth.MinPasswordLength,
			Hasher:            hasher,
			Logger:            logger,
		}),
		fields:       service.NewFieldService(repos.Fields),
		out:          out,
		readPassword: promptPassword,
	}
	return a.dispatch(ctx, args)
}
