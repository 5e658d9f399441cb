package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pitchcast/pitchcast/internal/logging"
	"github.com/pitchcast/pitchcast/internal/tui/app"
	"github.com/pitchcast/pitchcast/internal/tui/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8000/ws", "WebSocket URL of the pitchcast server")
	style := flag.String("style", "dark", "Help overlay style (dark, light, notty)")
	history := flag.Int("history", 240, "Frequencies kept for the history sparkline")
	logPath := flag.String("log", "", "Write debug logs to this file")
	flag.Parse()

	logger, closeLog, err := openLog(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	// Derive HTTP base URL from WebSocket URL.
	httpBase := deriveHTTPBase(*wsURL)

	ws := client.NewWSClient(*wsURL, logger)
	httpClient := client.NewHTTPClient(httpBase)

	m := app.New(ws, httpClient, app.Options{HelpStyle: *style, History: *history})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openLog sends logs to path, or discards them: the terminal belongs to
// the UI.
func openLog(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return logging.InitLoggerTo(io.Discard, "info", "text"), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return logging.InitLoggerTo(f, "debug", "text"), func() { f.Close() }, nil
}

// deriveHTTPBase converts ws://host:port/ws → http://host:port
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "http://127.0.0.1:8000"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
