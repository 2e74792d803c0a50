package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aroranishank/tms-frontend/internal/api"
	"github.com/aroranishank/tms-frontend/internal/config"
	"github.com/aroranishank/tms-frontend/internal/logging"
	"github.com/aroranishank/tms-frontend/internal/session"
	"github.com/aroranishank/tms-frontend/internal/tui"
	"github.com/aroranishank/tms-frontend/internal/web"
)

func main() {
	configPathFlag := flag.String("config", "", "config file path")
	apiFlag := flag.String("api", "", "task API base URL")
	webFlag := flag.Bool("web", false, "enable the read-only web dashboard")
	webOnlyFlag := flag.Bool("web-only", false, "run the dashboard without the TUI")
	portFlag := flag.Int("port", 0, "dashboard port")
	logLevelFlag := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	if *apiFlag != "" {
		cfg.APIBaseURL = *apiFlag
	}
	if *webFlag || *webOnlyFlag {
		cfg.WebEnabled = true
	}
	if *portFlag != 0 {
		cfg.WebPort = *portFlag
	}
	if cfg.WebPort == 0 {
		cfg.WebPort = 8080
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}

	stateDir := filepath.Dir(cfgPath)
	if cfg.SessionPath == "" {
		cfg.SessionPath = filepath.Join(stateDir, "session.db")
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(stateDir, "tms.log")
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		log.Fatal(err)
	}

	// The TUI owns the terminal, so logs go to a file.
	logger, closeLogs, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLogs()

	if err := config.EnsureDir(cfg.SessionPath); err != nil {
		log.Fatal(err)
	}
	cache, err := session.OpenCache(cfg.SessionPath)
	if err != nil {
		log.Fatal(err)
	}
	defer cache.Close()

	client := api.NewClient(cfg.APIBaseURL, cfg.Timeout(), cache, logger)
	sess := session.NewStore(cache, client, logger)

	if cfg.WebEnabled {
		addr := fmt.Sprintf(":%d", cfg.WebPort)
		handler := web.NewServer(client, cfg.PageSize, logger).Handler()
		if *webOnlyFlag {
			log.Printf("Dashboard running at http://localhost%s", addr)
			log.Fatal(http.ListenAndServe(addr, handler))
		}

		go func() {
			logger.Info().Str("addr", addr).Msg("dashboard listening")
			if err := http.ListenAndServe(addr, handler); err != nil {
				logger.Error().Err(err).Msg("dashboard stopped")
			}
		}()
	}

	if err := tui.Run(sess, client, cfg, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}
