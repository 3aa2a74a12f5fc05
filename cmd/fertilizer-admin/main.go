// Package main is the entry point for the fertilizer advisor admin CLI.
// It manages accounts and the recommendation rule table directly against the database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/app"
	"github.com/prn-tf/fertilizer-advisor/internal/config"
	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/pkg/crypto"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
	"github.com/prn-tf/fertilizer-advisor/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command, args := os.Args[1], os.Args[2:]

	switch command {
	case "version":
		fmt.Printf("Fertilizer Advisor Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return

	case "help", "-h", "--help":
		printUsage()
		return
	}

	if err := runCommand(command, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	verbose := fs.Bool("v", false, "log to stderr")

	var run func(ctx context.Context, env *environment, args []string) error
	switch command {
	case "user":
		run = userCommand
	case "rules":
		run = rulesCommand
	case "crops":
		run = cropsCommand
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(ctx, *configPath, *verbose)
	if err != nil {
		return err
	}
	defer env.close()

	return run(ctx, env, fs.Args())
}

// environment holds what every command needs.
type environment struct {
	cfg    *config.Config
	db     *repository.CreateRepositoriesResult
	logger zerolog.Logger
	closer func()
}

func newEnvironment(ctx context.Context, configPath string, verbose bool) (*environment, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	db, err := app.OpenRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:    cfg,
		db:     db,
		logger: logger,
		closer: func() { _ = db.Database.Close() },
	}, nil
}

func (e *environment) close() {
	if e.closer != nil {
		e.closer()
	}
}

// userCommand handles "user create" and "user count".
func userCommand(ctx context.Context, env *environment, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: fertilizer-admin user <create|count> [flags]")
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("user create", flag.ContinueOnError)
		username := fs.String("username", "", "account username")
		password := fs.String("password", "", "account password")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		hasher, err := crypto.NewPasswordHasher(env.cfg.Auth.BcryptCost)
		if err != nil {
			return err
		}
		locker, closeLocker, err := app.NewLocker(ctx, env.cfg.Redis, env.logger)
		if err != nil {
			return err
		}
		defer closeLocker()

		users := service.NewUserService(env.db.Repos.User, hasher, locker, env.cfg.Auth.SignupLockTimeout, env.logger)
		out, err := users.CreateUser(ctx, service.CreateUserInput{Username: *username, Password: *password})
		if err != nil {
			return err
		}
		fmt.Printf("Created user %s (id %d)\n", out.User.Username, out.User.ID)
		return nil

	case "count":
		n, err := env.db.Repos.User.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil

	default:
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

// rulesCommand handles "rules list [crop]" and "rules seed".
func rulesCommand(ctx context.Context, env *environment, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: fertilizer-admin rules <list [crop]|seed>")
	}

	switch args[0] {
	case "list":
		var crop string
		if len(args) > 1 {
			crop = args[1]
		}
		rules, err := listRules(ctx, env.db.Repos.Rule, crop)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCROP\tN\tP\tK\tFERTILIZER")
		for _, r := range rules {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.Crop, r.N, r.P, r.K, r.Fertilizer)
		}
		return tw.Flush()

	case "seed":
		locker, closeLocker, err := app.NewLocker(ctx, env.cfg.Redis, env.logger)
		if err != nil {
			return err
		}
		defer closeLocker()

		svc := service.NewRecommendationService(env.db.Repos.Rule, locker, nil, env.logger)
		inserted, err := svc.Seed(ctx)
		if err != nil {
			return err
		}
		if inserted == 0 {
			fmt.Println("Rule table already populated; nothing to do")
			return nil
		}
		fmt.Printf("Seeded %d rules\n", inserted)
		return nil

	default:
		return fmt.Errorf("unknown rules subcommand: %s", args[0])
	}
}

func listRules(ctx context.Context, repo repository.RuleRepository, crop string) ([]*domain.Rule, error) {
	if crop == "" {
		return repo.List(ctx)
	}
	return repo.ListByCrop(ctx, crop)
}

// cropsCommand prints the crops that have rules.
func cropsCommand(ctx context.Context, env *environment, _ []string) error {
	crops, err := env.db.Repos.Rule.Crops(ctx)
	if err != nil {
		return err
	}
	for _, c := range crops {
		fmt.Println(c)
	}
	return nil
}

func printUsage() {
	fmt.Println(`Fertilizer Advisor Admin CLI

Usage:
  fertilizer-admin <command> [-config path] [-v] [arguments]

Commands:
  user create   Create an account (-username, -password)
  user count    Print the number of accounts
  rules list    List rules, optionally for one crop
  rules seed    Insert the default rules into an empty table
  crops         List crops that have rules
  version       Print version information
  help          Show this help message

Examples:
  fertilizer-admin user create -username alice -password s3cret
  fertilizer-admin rules list Wheat
  fertilizer-admin rules -config configs/config.yaml seed`)
}
