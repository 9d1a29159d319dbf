package bridge

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"zolo/internal/display"
)

// inputTimeout bounds how long a Bifrost read waits for the client.
const inputTimeout = 5 * time.Minute

// connDisplay implements the display collaborator over one connection:
// render calls become zDisplay events, reads await an input_response.
// Error and access-denied messages take the same path, so they look the
// same to a Bifrost client as to a terminal user.
type connDisplay struct {
	client *Client
}

// NewDisplay wraps a client in the display contract.
func NewDisplay(c *Client) display.Display {
	return &connDisplay{client: c}
}

func (d *connDisplay) emit(fields map[string]any) {
	d.client.SendEvent("zDisplay", fields)
}

func (d *connDisplay) Text(s string) {
	d.emit(map[string]any{"type": "text", "text": s})
}

func (d *connDisplay) Header(level int, s string) {
	d.emit(map[string]any{"type": "header", "indent": level, "text": s})
}

func (d *connDisplay) Markdown(s string) {
	d.emit(map[string]any{"type": "markdown", "text": s})
}

func (d *connDisplay) List(items []string, ordered bool) {
	d.emit(map[string]any{"type": "list", "items": items, "ordered": ordered})
}

func (d *connDisplay) Table(headers []string, rows [][]string) {
	d.emit(map[string]any{"type": "table", "headers": headers, "rows": rows})
}

func (d *connDisplay) URL(label, href string) {
	d.emit(map[string]any{"type": "url", "label": label, "href": href})
}

func (d *connDisplay) Image(src, alt string) {
	d.emit(map[string]any{"type": "image", "src": src, "alt": alt})
}

func (d *connDisplay) Menu(v display.MenuView) {
	d.emit(map[string]any{
		"type":       "menu",
		"title":      v.Title,
		"options":    v.Options,
		"allow_back": v.AllowBack,
	})
}

// ReadLine sends an input request and blocks until the client's
// input_response resolves it.
func (d *connDisplay) ReadLine(prompt string) (string, error) {
	requestID := uuid.NewString()
	d.client.SendEvent("input_request", map[string]any{
		"requestId": requestID,
		"prompt":    prompt,
	})
	return d.client.Inputs.Await(requestID, inputTimeout)
}

// Confirm reads a yes/no answer over the wire.
func (d *connDisplay) Confirm(prompt string) (bool, error) {
	answer, err := d.ReadLine(prompt + " [y/N]")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func (d *connDisplay) AccessDenied(msg string) {
	d.emit(map[string]any{"type": "access_denied", "text": msg})
}

func (d *connDisplay) Error(msg string) {
	d.client.SendError("display_error", msg)
}
