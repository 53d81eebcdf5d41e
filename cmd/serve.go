package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirphl/chart-drawings/internal/autosave"
	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/db"
	"github.com/amirphl/chart-drawings/internal/exchange"
	"github.com/amirphl/chart-drawings/internal/server"
	"github.com/amirphl/chart-drawings/internal/utils"
)

func init() {
	serveCmd.Flags().String("csv", "", "serve candles from this CSV file instead of Wallex")
	serveCmd.Flags().String("symbol", "BTCUSDT", "symbol of the CSV candles")
	serveCmd.Flags().String("interval", "1h", "interval of the CSV candles")
	serveCmd.Flags().Bool("migrate", false, "run Postgres migrations before serving")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the drawings and sessions HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := utils.GetLogger()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if cfg.Storage.Driver != config.DriverPostgres {
				return fmt.Errorf("--migrate needs the %s driver, got %s", config.DriverPostgres, cfg.Storage.Driver)
			}
			if err := runMigrations(ctx, cfg.Storage.DBConnStr); err != nil {
				return err
			}
		}

		storage, err := db.Open(cfg.Storage)
		if err != nil {
			return err
		}
		defer storage.Close()

		source, err := candleSource(cmd, cfg)
		if err != nil {
			return err
		}
		logger.Infof("Main | serving candles from %s", source.Name())

		saver := autosave.New(storage, cfg.Autosave)
		if err := saver.Start(ctx); err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := saver.Stop(flushCtx); err != nil {
				logger.Errorf("Main | final autosave failed: %v", err)
			}
		}()

		srv := server.New(cfg, storage, source, server.WithSaver(saver))
		return srv.Run(ctx)
	},
}

func candleSource(cmd *cobra.Command, cfg config.Config) (exchange.CandleSource, error) {
	path, _ := cmd.Flags().GetString("csv")
	if path == "" {
		return exchange.NewWallexExchange(cfg.WallexAPIKey, cfg.Autosave.MaxRetries), nil
	}
	symbol, _ := cmd.Flags().GetString("symbol")
	interval, _ := cmd.Flags().GetString("interval")

	candles, err := readCSVFile(path, symbol, interval)
	if err != nil {
		return nil, err
	}
	src := exchange.NewStaticSource()
	src.Put(symbol, interval, candles)
	return src, nil
}
