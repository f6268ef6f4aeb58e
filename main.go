package main

import (
	"context"
	"embed"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"SaveGuard/internal/cli"
	"SaveGuard/internal/services"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	os.Exit(cli.Execute(cli.Options{Desktop: runDesktop}))
}

func runDesktop(ctx context.Context, svc *services.Services, logger *slog.Logger) error {
	app := NewApp(svc, logger)
	return wails.Run(&options.App{
		Title:            "SaveGuard",
		Width:            960,
		Height:           640,
		MinWidth:         720,
		MinHeight:        480,
		AssetServer:      &assetserver.Options{Assets: assets},
		BackgroundColour: &options.RGBA{R: 18, G: 18, B: 20, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind:             []interface{}{app},
	})
}
