package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amirphl/chart-drawings/internal/candle"
	"github.com/amirphl/chart-drawings/internal/chart"
	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/db"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/exchange"
	"github.com/amirphl/chart-drawings/internal/interaction"
	"github.com/amirphl/chart-drawings/internal/render"
	"github.com/amirphl/chart-drawings/internal/store"
	"github.com/amirphl/chart-drawings/internal/utils"
)

func init() {
	renderCmd.Flags().String("user", "", "owner of the drawings")
	renderCmd.Flags().String("symbol", "BTCUSDT", "symbol to render")
	renderCmd.Flags().String("interval", "1h", "interval of the CSV candles")
	renderCmd.Flags().String("csv", "", "CSV file with the candles to draw over")
	renderCmd.Flags().Float64("width", 1000, "chart width in pixels")
	renderCmd.Flags().Float64("height", 500, "chart height in pixels")
	renderCmd.Flags().String("select", "", "drawing id to render as selected")
	_ = renderCmd.MarkFlagRequired("user")
	_ = renderCmd.MarkFlagRequired("csv")
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "print the scene of a user's stored drawings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		user, _ := f.GetString("user")
		symbol, _ := f.GetString("symbol")
		interval, _ := f.GetString("interval")
		path, _ := f.GetString("csv")
		width, _ := f.GetFloat64("width")
		height, _ := f.GetFloat64("height")
		selected, _ := f.GetString("select")

		candles, err := readCSVFile(path, symbol, interval)
		if err != nil {
			return err
		}
		storage, err := db.Open(cfg.Storage)
		if err != nil {
			return err
		}
		defer storage.Close()

		sc, err := renderScene(cmd.Context(), storage, cfg.Engine, sceneRequest{
			User:     user,
			Symbol:   symbol,
			Interval: interval,
			Width:    width,
			Height:   height,
			Selected: selected,
		}, candles)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sc)
	},
}

type sceneRequest struct {
	User     string
	Symbol   string
	Interval string
	Width    float64
	Height   float64
	Selected string
}

// noPrompt is a host that cancels every prompt.
type noPrompt struct {
	*chart.Viewport
}

func (noPrompt) RequestText(string) (string, bool) { return "", false }

func (noPrompt) EditDrawing(d drawing.Drawing) (drawing.Drawing, interaction.EditResult) {
	return d, interaction.EditCancelled
}

func renderScene(ctx context.Context, storage db.Storage, cfg config.EngineConfig, req sceneRequest, candles []candle.Candle) (render.Scene, error) {
	records, err := storage.LoadDrawings(ctx, req.User, req.Symbol)
	if err != nil {
		return render.Scene{}, fmt.Errorf("failed to load drawings: %w", err)
	}
	st, err := store.Load(req.Symbol, records)
	if err != nil {
		utils.GetLogger().WithError(err).Warn("Main | skipped invalid stored drawings")
	}

	v := chart.NewViewport(candles, req.Interval, req.Width, req.Height)
	e := interaction.New(v, noPrompt{v}, st, cfg)
	state := e.State()
	if req.Selected != "" {
		if _, ok := st.Get(req.Selected); !ok {
			return render.Scene{}, fmt.Errorf("failed to select %s: %w", req.Selected, store.ErrNotFound)
		}
		state.SelectedID = req.Selected
		state.Phase = interaction.PhaseSelected
	}
	return render.Project(render.Input{
		Drawings: st.List(),
		State:    state,
		Tester:   e.HitTester(),
		Toolbar:  render.ToolbarSize{Width: cfg.ToolbarWidth, Height: cfg.ToolbarHeight},
	}), nil
}

func readCSVFile(path, symbol, interval string) ([]candle.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open candles file: %w", err)
	}
	defer f.Close()
	return exchange.ReadCSV(f, symbol, interval)
}
