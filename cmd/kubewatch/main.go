package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"kubewatch/internal/command"
	"kubewatch/internal/config"
	"kubewatch/internal/db"
	"kubewatch/internal/util/logger/sl"
	"kubewatch/internal/watcher"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "kubewatch",
		Short:        "Apply manifests when they change on disk",
		Long:         "kubewatch watches a directory tree and runs a command (kubectl apply -f by default) with every changed manifest.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(config.ResolvePath(configPath))
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $CONFIG_PATH or config.yaml)")

	root.AddCommand(newHistoryCmd(&configPath))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kubewatch", version)
		},
	})

	return root
}

func runWatch(configPath string) error {
	cfg, cfgErr := config.Load(configPath)
	if cfgErr != nil {
		var err error
		if cfg, err = config.Default(); err != nil {
			return err
		}
	}

	log := setupLogger(cfg.Env, os.Stdout)

	if cfgErr != nil {
		log.Warn("cannot read config file, using defaults", slog.String("path", configPath), sl.Err(cfgErr))
	}

	logConfig(log, cfg)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", sl.Err(err))
		return err
	}

	if tool, missing := command.MissingTool(cfg.Command); missing {
		log.Warn(tool + " not found, please install it with the following instructions")
		fmt.Fprintln(os.Stderr, command.InstallInstructions(tool))
	}

	var history watcher.HistoryRecorder
	if cfg.HistoryPath != "" {
		hdb, err := db.NewHistoryDB(db.Config{Path: cfg.HistoryPath})
		if err != nil {
			log.Error("cannot open dispatch history", sl.Err(err))
			return err
		}
		defer hdb.Close()
		history = hdb
	}

	debounce, _ := cfg.Debounce()

	processor, err := watcher.NewProcessor(command.NewRunner(cfg.Command, log), watcher.Config{
		Extensions:     cfg.FileExtensions,
		Prefixes:       cfg.FilePrefixes,
		IgnorePatterns: cfg.IgnorePatterns,
		Debounce:       debounce,
		History:        history,
		Logger:         log,
	})
	if err != nil {
		log.Error("invalid watcher configuration", sl.Err(err))
		return err
	}

	src, err := watcher.NewSource(log)
	if err != nil {
		log.Error("watcher error", sl.Err(err))
		return err
	}

	if err := src.Watch(cfg.WatchDir); err != nil {
		src.Close()
		log.Error("watcher error", sl.Err(err))
		log.Error("please update 'watch_dir' in the config file to a valid directory and restart the application")
		return fmt.Errorf("failed to watch %s: %w", cfg.WatchDir, err)
	}

	log.Info("watching directory", slog.String("path", resolvedPath(cfg.WatchDir)))

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChannel)

	go func() {
		sig := <-signalChannel
		log.Info("shutdown signal received", slog.Any("signal", sig))
		if err := src.Close(); err != nil {
			log.Error("failed to close watcher", sl.Err(err))
		}
	}()

	processor.Run(src.Events())

	log.Info("watcher exited normally")
	return nil
}

func logConfig(log *slog.Logger, cfg *config.Config) {
	debounce := "none"
	if window, ok := cfg.Debounce(); ok {
		debounce = window.String()
	}

	log.Info("starting file watcher",
		slog.String("watch_dir", cfg.WatchDir),
		slog.String("command", cfg.Command),
		slog.Any("extensions", cfg.FileExtensions),
		slog.Any("prefixes", cfg.FilePrefixes),
		slog.Any("ignore_patterns", cfg.IgnorePatterns),
		slog.String("debounce", debounce),
		slog.String("version", version),
	)
}

func resolvedPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
