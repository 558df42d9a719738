// Command sukunadb_cli is an interactive shell over the simulation engine.
// Each line is one command from the usual grammar; "exit" or "quit" leaves
// the shell.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/coordinator"
	"github.com/sushant-115/sukunadb/internal/command"
	"github.com/sushant-115/sukunadb/pkg/logger"
)

var (
	logLevel  = flag.String("log_level", "warn", "Minimum log level (debug, info, warn, error)")
	logOutput = flag.String("log_output", "stderr", "Log destination (stderr or a file path)")
)

func main() {
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console", OutputFile: *logOutput})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.With(zap.String("run_id", uuid.NewString()))

	coord, err := coordinator.New(coordinator.Config{
		Out:    os.Stdout,
		Logger: log.Named("coordinator"),
	})
	if err != nil {
		log.Fatal("failed to create coordinator", zap.Error(err))
	}

	dispatcher := command.NewDispatcher(command.Config{
		Coordinator: coord,
		Out:         os.Stdout,
		Logger:      log.Named("dispatcher"),
	})

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sukunadb> ",
		HistoryFile:     os.TempDir() + "/sukunadb_cli_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Fatal("failed to initialize readline", zap.Error(err))
	}
	defer rl.Close()

	fmt.Println("SukunaDB interactive shell. Commands: begin, R, W, end, fail, recover, dump. Type 'exit' to leave.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("readline failed", zap.Error(err))
			break
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "exit" || trimmed == "quit" {
			break
		}
		dispatcher.Execute(line)
	}
}
