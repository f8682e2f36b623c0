package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/runconsole/internal/config"
	"github.com/aristath/runconsole/internal/logging"
	"github.com/aristath/runconsole/internal/model"
)

// rootFlags holds the persistent flag values shared by all commands.
type rootFlags struct {
	configPath string
	server     string
	url        string
	token      string
	format     string
	logFile    string
	debug      bool
	noHistory  bool
}

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		f       rootFlags
		logSink io.Closer
	)

	root := &cobra.Command{
		Use:           "runconsole",
		Short:         "Live console for browser automation runs",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if f.debug {
				level = logging.LevelDebug
			}
			w, closer, err := openLogSink(f.logFile)
			if err != nil {
				return err
			}
			logSink = closer
			_, err = logging.Configure(level, w)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logSink != nil {
				_ = logSink.Close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, paths, err := loadConfig(f)
			if err != nil {
				return err
			}
			return runConsole(cmd.Context(), cfg, paths)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file layered over the global config (default .runconsole/config.json)")
	pf.StringVar(&f.server, "server", "", "Server profile to use")
	pf.StringVar(&f.url, "url", "", "Override the server base URL")
	pf.StringVar(&f.token, "token", "", "Override the server access token")
	pf.StringVar(&f.format, "format", "", "Output format: json, csv or summary")
	pf.StringVar(&f.logFile, "log-file", "", "Client log file (default ~/.runconsole/runconsole.log)")
	pf.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&f.noHistory, "no-history", false, "Do not record finished runs")

	root.AddCommand(newHistoryCmd(&f))
	return root
}

// configPaths are the files settings are read from and saved to.
type configPaths struct {
	global  string
	project string
}

// loadConfig merges defaults, the global file and the project file, then
// applies flag overrides and validates the result.
func loadConfig(f rootFlags) (*config.ConsoleConfig, configPaths, error) {
	var paths configPaths
	global, err := config.GlobalPath()
	if err != nil {
		return nil, paths, fmt.Errorf("getting home directory: %w", err)
	}
	paths.global = global
	paths.project = config.ProjectPath()
	if f.configPath != "" {
		paths.project = f.configPath
	}

	cfg, err := config.Load(paths.global, paths.project)
	if err != nil {
		return nil, paths, err
	}
	if err := applyFlags(cfg, f); err != nil {
		return nil, paths, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, paths, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, paths, nil
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cfg *config.ConsoleConfig, f rootFlags) error {
	if f.server != "" {
		cfg.ActiveServer = f.server
	}
	if f.url != "" || f.token != "" {
		if cfg.Servers == nil {
			cfg.Servers = make(map[string]config.ServerConfig)
		}
		server := cfg.Servers[cfg.ActiveServer]
		if f.url != "" {
			server.BaseURL = f.url
		}
		if f.token != "" {
			server.Token = f.token
		}
		cfg.Servers[cfg.ActiveServer] = server
	}
	if f.format != "" {
		format, err := model.ParseOutputFormat(f.format)
		if err != nil {
			return err
		}
		cfg.Run.OutputFormat = string(format)
	}
	if f.noHistory {
		cfg.Run.HistoryDisabled = true
	}
	return nil
}

// openLogSink opens the client log file. The terminal belongs to the
// console, so logs never go to stderr.
func openLogSink(path string) (io.Writer, io.Closer, error) {
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return io.Discard, nil, nil
		}
		path = filepath.Join(dir, "runconsole.log")
	}
	f, err := logging.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}
