// Package device – gateway.go abstracts access to the phone's hardware
// and telephony features. The concrete implementation shells out to the
// Termux:API command-line bridge; an interface boundary keeps the agent
// and scheduler testable without a device attached.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a single bridge command. Location fixes
// on a cold GPS can take a while, so this is deliberately generous.
const DefaultCommandTimeout = 45 * time.Second

// InboxMessage is a single SMS as reported by the telephony bridge.
type InboxMessage struct {
	ID     int    `json:"_id"`
	Number string `json:"number"`
	Body   string `json:"body"`
	Type   string `json:"type"`
}

// IsInbox reports whether the message is an incoming one (as opposed to
// sent/draft entries the bridge also returns).
func (m InboxMessage) IsInbox() bool {
	return m.Type == "inbox"
}

// Gateway is the device access boundary used by tools and the SMS poller.
type Gateway interface {
	// BatteryStatus returns battery state as reported by the device, as JSON text.
	BatteryStatus(ctx context.Context) (string, error)
	// WifiInfo returns the current WiFi connection info as JSON text.
	WifiInfo(ctx context.Context) (string, error)
	// Location returns the device's GPS position as JSON text.
	Location(ctx context.Context) (string, error)
	// DeviceInfo returns telephony device info as JSON text.
	DeviceInfo(ctx context.Context) (string, error)
	// ReadClipboard returns the clipboard contents.
	ReadClipboard(ctx context.Context) (string, error)
	// WriteClipboard replaces the clipboard contents.
	WriteClipboard(ctx context.Context, text string) error
	// SendSMS sends a text message to the given number.
	SendSMS(ctx context.Context, number, message string) error
	// SendSMSWithAttachment sends a message with a file attached (MMS).
	SendSMSWithAttachment(ctx context.Context, number, message, filePath string) error
	// TakePhoto captures a photo with the rear camera into targetPath.
	TakePhoto(ctx context.Context, targetPath string) error
	// ListSMS returns the most recent limit messages, unsorted.
	ListSMS(ctx context.Context, limit int) ([]InboxMessage, error)
}

// Runner executes a bridge command and returns its stdout.
// Swappable so tests can stub out the device entirely.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ShellGateway implements Gateway by invoking the termux-* binaries.
type ShellGateway struct {
	run     Runner
	timeout time.Duration
	logger  *slog.Logger
}

// NewShellGateway creates a gateway backed by the local termux-* commands.
func NewShellGateway(logger *slog.Logger) *ShellGateway {
	return &ShellGateway{
		run:     execRunner,
		timeout: DefaultCommandTimeout,
		logger:  logger.With("component", "device"),
	}
}

// NewGatewayWithRunner creates a gateway with a custom command runner.
// Used in tests to fake device responses.
func NewGatewayWithRunner(run Runner, logger *slog.Logger) *ShellGateway {
	return &ShellGateway{
		run:     run,
		timeout: DefaultCommandTimeout,
		logger:  logger.With("component", "device"),
	}
}

// execRunner is the real Runner: spawn the command and capture stdout.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		if stderr != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, stderr)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// command runs a bridge command under the gateway timeout and returns
// trimmed stdout.
func (g *ShellGateway) command(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.run(ctx, name, args...)
	if err != nil {
		g.logger.Warn("bridge command failed", "command", name, "error", err)
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (g *ShellGateway) BatteryStatus(ctx context.Context) (string, error) {
	return g.command(ctx, "termux-battery-status")
}

func (g *ShellGateway) WifiInfo(ctx context.Context) (string, error) {
	return g.command(ctx, "termux-wifi-connectioninfo")
}

func (g *ShellGateway) Location(ctx context.Context) (string, error) {
	return g.command(ctx, "termux-location")
}

func (g *ShellGateway) DeviceInfo(ctx context.Context) (string, error) {
	return g.command(ctx, "termux-telephony-deviceinfo")
}

func (g *ShellGateway) ReadClipboard(ctx context.Context) (string, error) {
	return g.command(ctx, "termux-clipboard-get")
}

func (g *ShellGateway) WriteClipboard(ctx context.Context, text string) error {
	_, err := g.command(ctx, "termux-clipboard-set", text)
	return err
}

func (g *ShellGateway) SendSMS(ctx context.Context, number, message string) error {
	_, err := g.command(ctx, "termux-sms-send", "-n", number, message)
	if err == nil {
		g.logger.Info("sms sent", "number", number, "chars", len(message))
	}
	return err
}

func (g *ShellGateway) SendSMSWithAttachment(ctx context.Context, number, message, filePath string) error {
	_, err := g.command(ctx, "termux-sms-send", "-n", number, "-a", filePath, message)
	return err
}

func (g *ShellGateway) TakePhoto(ctx context.Context, targetPath string) error {
	_, err := g.command(ctx, "termux-camera-photo", "-c", "0", targetPath)
	return err
}

func (g *ShellGateway) ListSMS(ctx context.Context, limit int) ([]InboxMessage, error) {
	out, err := g.command(ctx, "termux-sms-list", "-l", fmt.Sprintf("%d", limit))
	if err != nil {
		return nil, err
	}
	if out == "" || out == "[]" {
		return nil, nil
	}

	var messages []InboxMessage
	if err := json.Unmarshal([]byte(out), &messages); err != nil {
		return nil, fmt.Errorf("parsing sms list: %w", err)
	}
	return messages, nil
}

// PhotoTargetPath builds the capture path for a new photo in the shared
// downloads folder, named by capture time so repeated shots never collide.
func PhotoTargetPath(now time.Time) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	name := fmt.Sprintf("photo_%d.jpg", now.Unix())
	return filepath.Join(home, "storage", "downloads", name)
}
