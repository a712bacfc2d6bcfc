package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/ponwatch/internal/archive"
	"github.com/tinytelemetry/ponwatch/internal/dashboard"
	"github.com/tinytelemetry/ponwatch/internal/httpserver"
	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/status"
	"go.uber.org/zap"
)

// runServer serves the dashboard API until SIGINT or SIGTERM.
func runServer(cfg appConfig, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	// Background refresh keeps the snapshot warm; without it the first
	// request after MaxAge pays for the fetch.
	var refresher *dashboard.Refresher
	if cfg.BackgroundRefresh {
		refresher = dashboard.NewRefresher(p.state, cfg.RefreshInterval)
	}
	defer refresher.Stop()

	archiveManager, err := archive.NewManager(p.state, archive.Config{
		Enabled:        cfg.ArchiveEnabled,
		Interval:       cfg.ArchiveInterval,
		LocalDir:       cfg.ArchiveDir,
		KeepLast:       cfg.ArchiveKeepLast,
		BucketURL:      cfg.ArchiveBucketURL,
		S3Endpoint:     cfg.ArchiveS3Endpoint,
		S3Region:       cfg.ArchiveS3Region,
		S3AccessKey:    cfg.ArchiveS3AccessKey,
		S3SecretKey:    cfg.ArchiveS3SecretKey,
		S3SessionToken: cfg.ArchiveS3SessionToken,
		S3UseSSL:       cfg.ArchiveS3UseSSL,
	}, logger.Named("archive"))
	if err != nil {
		return fmt.Errorf("failed to initialize report archive: %w", err)
	}
	defer archiveManager.Stop()

	statusClient := status.NewClient(cfg.StatusURL, cfg.StatusTimeout, logger.Named("status"))

	apiServer := httpserver.NewServer(httpserver.Config{
		Addr:        cfg.APIAddr,
		Gatherer:    p.registry,
		TopOLTLimit: model.DefaultTopOLTLimit,
		Logger:      logger.Named("http"),
	}, p.state, p.store, statusClient)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer apiServer.Stop()

	printStartupBanner(cfg, statusClient.Configured())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	<-sigCh
	fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
	cancel()

	go func() {
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	logger.Info("shutting down")
	return nil
}

func printStartupBanner(cfg appConfig, statusConfigured bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	line := func(ok bool, label, value string) string {
		mark := dot
		rendered := dim.Render(value)
		if ok {
			mark = check
			rendered = cyan.Render(value)
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, label, rendered)
	}

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╔╗╔╦ ╦╔═╗╔╦╗╔═╗╦ ╦
    ╠═╝║ ║║║║║║║╠═╣ ║ ║  ╠═╣
    ╩  ╚═╝╝╚╝╚╩╝╩ ╩ ╩ ╚═╝╩ ╩`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Sources"), "")
	lines = append(lines, line(cfg.HuaweiURL != "", "Huawei", feedLabel(cfg.HuaweiURL)))
	lines = append(lines, line(cfg.ZTEURL != "", "ZTE", feedLabel(cfg.ZTEURL)))
	lines = append(lines, line(cfg.ClientsPath != "", "Clients", shortenPath(cfg.ClientsPath)))
	if cfg.RedisAddr != "" {
		lines = append(lines, line(true, "Feed Cache", cfg.RedisAddr))
	} else {
		lines = append(lines, line(false, "Feed Cache", "disabled"))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines, line(true, "HTTP API", cfg.APIAddr))
	if statusConfigured {
		lines = append(lines, line(true, "ONT Status", cfg.StatusURL))
	} else {
		lines = append(lines, line(false, "ONT Status", "disabled"))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	if cfg.DBPath != "" {
		lines = append(lines, line(true, "Storage", shortenPath(cfg.DBPath)))
	} else {
		lines = append(lines, line(true, "Storage", "in-memory"))
	}
	if cfg.ArchiveEnabled {
		lines = append(lines, line(true, "Reports", shortenPath(cfg.ArchiveDir)))
	} else {
		lines = append(lines, line(false, "Reports", "disabled"))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Runtime"), "")
	refresh := "on demand, every " + cfg.RefreshInterval.String()
	if cfg.BackgroundRefresh {
		refresh = "background, every " + cfg.RefreshInterval.String()
	}
	lines = append(lines, line(true, "Refresh", refresh))
	if cfg.ConfigPath != "" {
		lines = append(lines, line(true, "Config File", shortenPath(cfg.ConfigPath)))
	} else {
		lines = append(lines, line(false, "Config File", "default (no file)"))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

// feedLabel keeps the host and drops the long publish token of a sheet URL.
func feedLabel(url string) string {
	if url == "" {
		return "disabled"
	}
	rest := url
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
