package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// HTTPClient makes REST calls to the pitchcast server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8000").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetNotes fetches /notes.
func (c *HTTPClient) GetNotes(ctx context.Context) ([]NoteEntry, error) {
	var out NotesResponse
	if err := c.get(ctx, "/notes", &out); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

// GetStatus fetches /status.
func (c *HTTPClient) GetStatus(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.get(ctx, "/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// NotesMsg carries the result of FetchNotes.
type NotesMsg struct {
	Notes []NoteEntry
	Err   error
}

// StatusMsg carries the result of FetchStatus.
type StatusMsg struct {
	Status *Status
	Err    error
}

// FetchNotes returns a Bubble Tea command that loads the note table.
func (c *HTTPClient) FetchNotes(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		notes, err := c.GetNotes(ctx)
		return NotesMsg{Notes: notes, Err: err}
	}
}

// FetchStatus returns a Bubble Tea command that loads the server status.
func (c *HTTPClient) FetchStatus(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		s, err := c.GetStatus(ctx)
		return StatusMsg{Status: s, Err: err}
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
