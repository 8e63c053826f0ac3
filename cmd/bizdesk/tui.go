package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bizdesk/internal/app"
	"github.com/nhle/bizdesk/internal/model"
	appsync "github.com/nhle/bizdesk/internal/sync"
)

// defaultLogPath returns ~/.config/bizdesk/bizdesk.log.
func defaultLogPath() string {
	return filepath.Join(filepath.Dir(model.DefaultConfigPath()), "bizdesk.log")
}

func runTUI(cfg *model.AppConfig) error {
	vault, sess, err := loadSession()
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so log output goes to a file.
	logPath := cfg.Log.File
	if logPath == "" {
		logPath = defaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "bizdesk")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	alerts := make(chan model.Notification, 16)
	authLost := make(chan error, 1)

	box, err := newInbox(cfg, hooks{
		onNew: func(n model.Notification) {
			select {
			case alerts <- n:
			default:
			}
		},
		onUnauthorized: func(err error) {
			select {
			case authLost <- err:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	defer box.Close()

	if err := box.Start(sess); err != nil {
		return err
	}

	m := app.New(app.Config{
		Inbox:     box,
		Poller:    appsync.New(box, cfg.Sync.Interval()),
		Alerts:    alerts,
		AuthLost:  authLost,
		OnExpired: clearSession(vault),
		User:      sess.User,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
