// Command smsgw sends and reads text messages through carrier email-to-SMS
// gateways using a regular mail account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/sms-messenger/internal/model"
)

const usage = `usage: smsgw [-config path] <command> [flags] [args]

commands:
  gateways   list supported carriers and their gateway domains
  login      store the account's app password in the system keyring
  logout     remove the stored app password
  check      log in to the mailbox server and report its capabilities
  send       send a text to gateway addresses, contacts or numbers
  fetch      print replies from one gateway address
  delete     delete replies, sent texts, or specific UIDs
  journal    list journaled traffic
  tui        open the interactive inbox
`

// command is one smsgw subcommand.
type command func(ctx context.Context, env *env, args []string) error

var commands = map[string]command{
	"gateways": runGateways,
	"login":    runLogin,
	"logout":   runLogout,
	"check":    runCheck,
	"send":     runSend,
	"fetch":    runFetch,
	"delete":   runDelete,
	"journal":  runJournal,
	"tui":      runTUI,
}

// env carries what every subcommand needs.
type env struct {
	cfg        *model.AppConfig
	configPath string
	logger     *slog.Logger
	level      slog.Level
}

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := flag.String("config", model.DefaultConfigPath(), "path to YAML configuration file")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	run, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "smsgw: unknown command %q\n\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := parseLevel(cfg.Logging.Level)
	logger := setupLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, configPath: *configPath, logger: logger, level: level}
	if err := run(ctx, e, flag.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Error(flag.Arg(0)+" failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger configures the global slog logger with text output on stderr
// and the specified log level.
func setupLogger(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
