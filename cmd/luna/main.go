// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command luna is the CLI for the Luna inference governor.
//
// Usage:
//
//	luna chat "<text>" --config luna.yaml
//	luna serve --config luna.yaml
//	luna info --config luna.yaml
//	luna validate luna.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lunacore/luna/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat     ChatCmd     `cmd:"" help:"Send a single-turn request and print the response."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Info     InfoCmd     `cmd:"" help:"Show current budget/CFIA state."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"luna.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)." default:"simple"`

	// LLMURL/LLMModel, when set, synthesize a config.NewZeroConfig instead
	// of requiring --config to point at an existing YAML file.
	LLMURL   string `help:"LLM base URL, for a quick run with no config file." placeholder:"URL"`
	LLMModel string `help:"LLM model name, paired with --llm-url." placeholder:"MODEL"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("luna version %s\n", version)
	return nil
}

func main() {
	os.Exit(run())
}

// run parses and executes the CLI, returning the process exit code. It is
// separated from main so deferred cleanup (log file, context cancellation)
// always runs before the process exits.
func run() int {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("luna"),
		kong.Description("Resource-constrained LLM inference governor."),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		return exitIOError
	}
	defer cleanup()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	if err := ctx.Run(&cli, runCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

// loadConfig loads and validates a Luna config file, with env-file
// resolution relative to the config file's directory. If cli carries
// --llm-url, it synthesizes a zero-config Config instead, bypassing the
// file entirely.
func loadConfig(ctx context.Context, cli *CLI) (*config.Config, *config.Loader, error) {
	if cli.LLMURL != "" {
		return config.NewZeroConfig(cli.LLMURL, cli.LLMModel), nil, nil
	}
	_ = config.LoadEnvFiles()
	return config.LoadConfigFile(ctx, cli.Config)
}
