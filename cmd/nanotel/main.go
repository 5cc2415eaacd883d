package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/coffersTech/nanotel/internal/pkg/nanoql"
	"github.com/coffersTech/nanotel/pkg/telparse"
)

const usage = `nanotel analyzes Android telephony logs.

Usage:
  nanotel analyze [flags] <query> <log file | capture dir>...
  nanotel pack [flags] <log file>...
  nanotel serve [flags]
  nanotel runs [flags]
  nanotel hashkey <api key>

Run "nanotel <command> -h" for the flags of a command.
`

var (
	// errViolation signals that the analysis ran but hit a precondition violation.
	errViolation = errors.New("precondition violation")
	// errUsage marks bad arguments; main exits 2 for it.
	errUsage = errors.New("usage")
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(args, logger)
	case "pack":
		err = runPack(args, logger)
	case "serve":
		err = runServe(args, logger)
	case "runs":
		err = runRuns(args)
	case "hashkey":
		err = runHashKey(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err == nil {
		return
	}
	code := exitCode(err)
	if code == 1 {
		logger.Error("command failed", slog.String("command", os.Args[1]), slog.String("error", err.Error()))
	} else if code == 2 {
		fmt.Fprintf(os.Stderr, "nanotel %s: %v\n", os.Args[1], err)
	}
	os.Exit(code)
}

// exitCode maps a command error to the process status: 3 for a precondition
// violation, 2 for bad arguments, 1 for anything else.
func exitCode(err error) int {
	var syntax *nanoql.SyntaxError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errViolation):
		return 3
	case errors.Is(err, errUsage),
		errors.Is(err, telparse.ErrUnknownQuery),
		errors.Is(err, telparse.ErrBadParam),
		errors.Is(err, telparse.ErrPeerRequired),
		errors.As(err, &syntax):
		return 2
	default:
		return 1
	}
}

func logLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(os.Getenv("NANOTEL_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
