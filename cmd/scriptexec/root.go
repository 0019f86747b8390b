package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caffeineduck/scriptexec/dispatch"
	"github.com/caffeineduck/scriptexec/engine"
	"github.com/caffeineduck/scriptexec/hostfunc"
	"github.com/caffeineduck/scriptexec/source"
	"github.com/caffeineduck/scriptexec/validate"
	"github.com/caffeineduck/scriptexec/wasm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scriptexec [file]",
		Short: "Validate and run submitted scripts",
		Long: `scriptexec - Screen scripts for forbidden calls and loads, then run them
in an isolated interpreter.

Scripts are Starlark, a Python dialect. Run them from files, inline strings,
or stdin, or serve the execute endpoints over HTTP. Scripts get no
filesystem, network, or host state unless enabled with flags.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRun,
	}

	root.PersistentFlags().String("env-file", ".env", "Environment file loaded at startup")
	root.PersistentFlags().Bool("no-cache", false, "Disable the WASM compilation cache")

	addRunFlags(root)

	root.AddCommand(newRunCmd(), newCheckCmd(), newServeCmd())
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// addEngineFlags registers the flags that shape the execution backend.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine", "starlark", "Execution backend: starlark, wasm")
	cmd.Flags().String("wasm-module", "", "Path to a WASI interpreter module (wasm engine)")
	cmd.Flags().String("memory", "", "WASM memory limit: 16mb, 64mb, 256mb, 1gb")
	cmd.Flags().Duration("timeout", 0, "Execution timeout, 0 for none")
	cmd.Flags().Uint64("max-steps", 0, "Max Starlark computation steps, 0 for none")
	cmd.Flags().Bool("kv", false, "Enable a per-execution key-value store")
	cmd.Flags().StringSlice("allow-host", nil, "Allow script HTTP to host (repeatable)")

	cmd.Flags().Int("http-max-url", hostfunc.DefaultMaxURLLength, "Max script HTTP URL length")
	cmd.Flags().Int64("http-max-body", hostfunc.DefaultMaxBodySize, "Max script HTTP response body size")
	cmd.Flags().Duration("fetch-timeout", source.DefaultRequestTimeout, "Timeout for fetching scripts by url")
	cmd.Flags().Int64("fetch-max-body", source.DefaultMaxBodySize, "Max fetched script size")
}

type runner interface {
	dispatch.Runner
	Close() error
}

type starlarkRunner struct {
	*engine.Engine
}

func (starlarkRunner) Close() error { return nil }

// buildRunner creates the backend selected by --engine.
func buildRunner(cmd *cobra.Command, log *zap.Logger) (runner, error) {
	backend, _ := cmd.Flags().GetString("engine")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	switch backend {
	case "", "starlark":
		maxSteps, _ := cmd.Flags().GetUint64("max-steps")
		enableKV, _ := cmd.Flags().GetBool("kv")
		allowedHosts, _ := cmd.Flags().GetStringSlice("allow-host")
		httpMaxURL, _ := cmd.Flags().GetInt("http-max-url")
		httpMaxBody, _ := cmd.Flags().GetInt64("http-max-body")

		registry := hostfunc.NewRegistry()
		if len(allowedHosts) > 0 {
			hostfunc.NewHTTP(hostfunc.HTTPConfig{
				AllowedHosts: allowedHosts,
				MaxURLLength: httpMaxURL,
				MaxBodySize:  httpMaxBody,
			}).Register(registry)
		}

		opts := []engine.Option{engine.WithLogger(log)}
		if timeout > 0 {
			opts = append(opts, engine.WithTimeout(timeout))
		}
		if maxSteps > 0 {
			opts = append(opts, engine.WithMaxSteps(maxSteps))
		}
		if enableKV {
			opts = append(opts, engine.WithKV())
		}
		return starlarkRunner{engine.New(registry, opts...)}, nil

	case "wasm":
		modulePath, _ := cmd.Flags().GetString("wasm-module")
		memory, _ := cmd.Flags().GetString("memory")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		if modulePath == "" {
			return nil, errors.New("--wasm-module is required with --engine wasm")
		}

		opts := []wasm.Option{wasm.WithLogger(log)}
		if timeout > 0 {
			opts = append(opts, wasm.WithTimeout(timeout))
		}
		if memory != "" {
			pages := wasm.ParseMemoryLimit(strings.ToLower(memory))
			if pages == 0 {
				return nil, fmt.Errorf("invalid memory limit %q", memory)
			}
			opts = append(opts, wasm.WithMemoryLimit(pages))
		}
		if !noCache {
			opts = append(opts, wasm.WithCacheDir(wasm.DefaultCacheDir()))
		}
		r, err := wasm.Load(commandContext(cmd), modulePath, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil

	default:
		return nil, fmt.Errorf("unknown engine %q: use starlark or wasm", backend)
	}
}

// buildDispatcher wires resolver, validator and runner from flags and cfg.
func buildDispatcher(cmd *cobra.Command, cfg config, r dispatch.Runner, log *zap.Logger) *dispatch.Dispatcher {
	fetchTimeout, _ := cmd.Flags().GetDuration("fetch-timeout")
	fetchMaxBody, _ := cmd.Flags().GetInt64("fetch-max-body")

	resolver := source.New(source.WithFetcher(source.NewFetcher(source.FetchConfig{
		MaxBodySize:    fetchMaxBody,
		RequestTimeout: fetchTimeout,
	})))
	validator := validate.New(
		validate.WithFunctionMessage(cfg.functionMessage),
		validate.WithModuleMessage(cfg.moduleMessage),
	)
	return dispatch.New(resolver, validator, r,
		dispatch.WithMessages(cfg.messages),
		dispatch.WithLogger(log),
	)
}

func configFromFlags(cmd *cobra.Command) (config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	return loadConfig(envFile)
}

var errNoInput = errors.New("no script given: use -c, a file argument, or stdin")

// readScript takes the script from -c, a file argument, or piped stdin.
func readScript(cmd *cobra.Command, args []string) (string, error) {
	code, _ := cmd.Flags().GetString("code")

	switch {
	case code != "":
		return code, nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok {
			if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
				return "", errNoInput
			}
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// parseParam decodes a --param value as JSON, falling back to the raw string.
func parseParam(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

const shutdownTimeout = 10 * time.Second
