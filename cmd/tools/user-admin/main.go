// cmd/tools/user-admin/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"wifidog-auth/internal/bootstrap"
	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/users"
)

type command struct {
	name       string
	username   string
	email      string
	password   string
	configPath string
}

type userDirectory interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	SetActive(ctx context.Context, username string, active bool) error
}

func main() {
	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		help()
		os.Exit(1)
	}
	if cmd.name == "help" {
		help()
		return
	}

	cfg, err := loadConfig(cmd.configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, "console", "stderr")
	defer zapLog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg, bootstrap.Retry{MaxAttempts: 3, InitialDelay: time.Second}, zapLog)
	if err != nil {
		zapLog.Fatal("storage unavailable", zap.Error(err))
	}
	defer store.Close()

	dir := users.NewDirectory(store.Users(), clock.New(), logger.NewZapAdapter(zapLog))
	if err := execute(ctx, cmd, dir, os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func parseCommand(args []string) (*command, error) {
	if len(args) < 1 {
		return nil, errors.New("missing command")
	}
	cmd := &command{name: args[0]}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cmd.configPath, "config", "", "Path to config file (default: configs/config.yaml lookup)")
	fs.StringVar(&cmd.username, "username", "", "Portal username")

	switch cmd.name {
	case "add":
		fs.StringVar(&cmd.email, "email", "", "Email address")
		fs.StringVar(&cmd.password, "password", "", "Initial password")
	case "activate", "deactivate":
	case "help":
		return cmd, nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.name)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if cmd.username == "" {
		return nil, fmt.Errorf("%s requires -username", cmd.name)
	}
	if cmd.name == "add" && (cmd.email == "" || cmd.password == "") {
		return nil, errors.New("add requires -username, -email and -password")
	}
	return cmd, nil
}

func execute(ctx context.Context, cmd *command, dir userDirectory, out io.Writer) error {
	switch cmd.name {
	case "add":
		u, err := dir.Register(ctx, cmd.username, cmd.email, cmd.password)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Added user %s (%s)\n", u.Username, u.ID)
	case "activate":
		if err := dir.SetActive(ctx, cmd.username, true); err != nil {
			return err
		}
		fmt.Fprintf(out, "Activated user %s\n", cmd.username)
	case "deactivate":
		if err := dir.SetActive(ctx, cmd.username, false); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deactivated user %s\n", cmd.username)
	default:
		return fmt.Errorf("unknown command %q", cmd.name)
	}
	return nil
}

func help() {
	fmt.Println("User Admin Tool")
	fmt.Println("Usage:")
	fmt.Println("  user-admin add -username <name> -email <email> -password <password> [-config <path>]")
	fmt.Println("  user-admin activate -username <name> [-config <path>]")
	fmt.Println("  user-admin deactivate -username <name> [-config <path>]")
	fmt.Println("  user-admin help")
}
