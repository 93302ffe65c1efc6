package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/siohaza/coas/internal/envelope"
	"github.com/siohaza/coas/internal/maps"
	"github.com/siohaza/coas/internal/network"
	"github.com/siohaza/coas/internal/server"
	"github.com/siohaza/coas/internal/status"
	"github.com/siohaza/coas/internal/storage"
	"github.com/siohaza/coas/internal/weapon"
	"github.com/siohaza/coas/internal/world"
	"github.com/siohaza/coas/pkg/config"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath string
	logLevel   string
	version    = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "coas",
	Short: "Coas - tile world game server",
	Long: `Coas is an authoritative, tick-driven game server for a 2D tile world.
Clients talk to it over ENet with sealed protobuf messages.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServer,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the game server",
	Long:  "Start the game server with the specified configuration",
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Coas v%s\n", version)
		fmt.Println("Built with Go")
	},
}

var checkMapCmd = &cobra.Command{
	Use:   "checkmap [files...]",
	Short: "Parse map files and report what they contain",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckMap,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.toml", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkMapCmd)
}

func parseLevel(s string) slog.Level {
	switch s {
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

func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var logWriter io.Writer = os.Stdout
	var closer io.Closer

	if cfg.Server.LogToFile {
		if err := os.MkdirAll(filepath.Dir(cfg.Server.LogFile), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.Server.LogFile,
			MaxSize:    cfg.Server.LogMaxSizeMB,
			MaxBackups: cfg.Server.LogMaxBackups,
		}
		logWriter = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}

	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
	return logger, closer, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting coas server", "version", version)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	networkKey, _ := cfg.NetworkKey()
	storageKey, _ := cfg.StorageKey()
	networkCipher, err := envelope.New(networkKey)
	if err != nil {
		return err
	}
	storageCipher, err := envelope.New(storageKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.Open(filepath.Join(cfg.Server.DataDir, "coas.db"), storageCipher)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return err
	}
	defer store.Close()

	mapStore := maps.NewStore(cfg.Server.MapsDir)
	grids, err := mapStore.LoadAll()
	if err != nil {
		logger.Error("failed to load maps", "error", err)
		return err
	}
	logger.Info("maps loaded", "count", len(grids), "dir", cfg.Server.MapsDir)

	weapons, err := weapon.NewTable(cfg.Weapons)
	if err != nil {
		logger.Error("invalid weapon overrides", "error", err)
		return err
	}

	net, err := network.NewServer(cfg.Server.Port, cfg.Server.MaxPeers, logger)
	if err != nil {
		return fmt.Errorf("failed to create network server: %w", err)
	}

	w, err := world.New(world.Options{
		Config:     cfg,
		Store:      store,
		Maps:       mapStore,
		Grids:      grids,
		Weapons:    weapons,
		Cipher:     networkCipher,
		Outbox:     server.NewOutbox(net),
		Logger:     logger,
		ScriptsDir: cfg.Server.ScriptsDir,
	})
	if err != nil {
		logger.Error("failed to create world", "error", err)
		return err
	}

	if err := net.Start(); err != nil {
		logger.Error("failed to start network", "error", err)
		return err
	}
	defer net.Stop()

	srv := server.New(cfg, net, w, networkCipher, logger)

	if cfg.Server.StatusPort > 0 {
		statusHandler := status.NewHandler(fmt.Sprintf(":%d", cfg.Server.StatusPort), status.Info{
			Name:       cfg.Server.Name,
			Version:    cfg.Server.Version,
			MaxPlayers: cfg.Server.MaxPeers,
		}, logger)
		if err := statusHandler.Start(); err != nil {
			logger.Warn("failed to start status handler", "error", err)
		} else {
			defer statusHandler.Stop()
			srv.SetStatus(statusHandler)
		}
	}

	logger.Info("server running",
		"name", cfg.Server.Name,
		"address", fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}

	logger.Info("server stopped successfully")
	return nil
}

func runCheckMap(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		name := strings.TrimSuffix(filepath.Base(path), maps.Extension)
		grid, err := maps.Parse(name, string(source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		tiles, zones, safeZones, teleporters, spawners := grid.Counts()
		fmt.Printf("%s: %s %dx%d, %d tiles, %d zones, %d safe zones, %d teleporters, %d spawners\n",
			path, grid.Name, grid.MaxX, grid.MaxY, tiles, zones, safeZones, teleporters, spawners)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d maps failed to parse", failed, len(args))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
