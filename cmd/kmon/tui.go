package main

import (
	"errors"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/kmon/internal/app"
	"github.com/HaPhanBaoMinh/kmon/internal/config"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(os.Stdin.Fd()) || !term.IsTerminal(os.Stdout.Fd()) {
		return errors.New("kmon needs a terminal; use kmon snapshot for scripted output")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stderr belongs to the alt screen
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(filepath.Dir(config.DefaultPath()), "kmon.log")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	reg, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}
	flagEntity, _ := cmd.Flags().GetString("entity")
	entity, err := startEntity(reg, flagEntity, cfg.Entity)
	if err != nil {
		return err
	}

	m, err := app.New(reg, entity, app.Options{
		Interval: cfg.Interval,
		Window:   cfg.RateWindow,
		PerPage:  cfg.PerPage,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	log.Info("starting ui", zap.String("backend", cfg.Backend), zap.String("entity", entity))
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
