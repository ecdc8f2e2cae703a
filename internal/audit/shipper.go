// shipper.go routes audit entries to external destinations (syslog,
// webhook, file) after they are durably inserted into the database.
// Shipping is best effort and asynchronous: a SIEM outage must never fail
// or slow down the administrative mutation that produced the entry.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/tavernkeep/tavernkeep/internal/telemetry"
)

// Shipper sends audit entries to an external destination.
type Shipper interface {
	Ship(ctx context.Context, entry *Entry) error
	Close() error
}

// ShipperConfig configures one shipping destination.
type ShipperConfig struct {
	Enabled bool
	Type    string // "syslog", "webhook" or "file"
	Syslog  *SyslogConfig
	Webhook *WebhookConfig
	File    *FileConfig
}

// SyslogConfig configures syslog delivery. An empty network and address
// connect to the local syslog daemon.
type SyslogConfig struct {
	Network  string // "udp", "tcp", "unixgram" or "" for local
	Address  string
	Tag      string // program name on each record; defaults to "tavernkeep-audit"
	Facility string // "user", "daemon", "auth" or "local0".."local7"
}

// WebhookConfig configures HTTP delivery of audit entries.
type WebhookConfig struct {
	URL           string
	Headers       map[string]string
	Timeout       time.Duration
	BatchSize     int // 0 disables batching
	FlushInterval time.Duration
}

// FileConfig configures newline-delimited JSON file delivery.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// MultiShipper fans entries out to every enabled destination. Delivery to
// one destination is independent of failures in another.
type MultiShipper struct {
	shippers []namedShipper
}

type namedShipper struct {
	typ string
	Shipper
}

// NewMultiShipper builds the configured shippers. Disabled entries are
// skipped; an unknown type is a configuration error.
func NewMultiShipper(configs []ShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		var (
			s   Shipper
			err error
		)
		switch cfg.Type {
		case "syslog":
			if cfg.Syslog == nil {
				return nil, fmt.Errorf("syslog shipper requires syslog config")
			}
			s, err = newSyslogShipper(cfg.Syslog)
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook shipper requires webhook config")
			}
			s, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file shipper requires file config")
			}
			s, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown audit shipper type %q", cfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("create %s shipper: %w", cfg.Type, err)
		}
		ms.shippers = append(ms.shippers, namedShipper{typ: cfg.Type, Shipper: s})
	}
	return ms, nil
}

// Enabled reports whether any destination is configured.
func (ms *MultiShipper) Enabled() bool { return len(ms.shippers) > 0 }

// Ship delivers the entry everywhere, returning the last error after
// attempting all destinations.
func (ms *MultiShipper) Ship(ctx context.Context, entry *Entry) error {
	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, entry); err != nil {
			lastErr = err
			telemetry.AuditShipFailuresTotal.WithLabelValues(s.typ).Inc()
			slog.Warn("audit shipper delivery failed", "shipper", s.typ, "error", err)
		}
	}
	return lastErr
}

// Close closes every shipper.
func (ms *MultiShipper) Close() error {
	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// WebhookShipper posts entries as JSON, optionally batched.
type WebhookShipper struct {
	cfg       *WebhookConfig
	client    *http.Client
	batchCh   chan *Entry
	batch     []*Entry
	batchMu   sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWebhookShipper creates a webhook shipper. When BatchSize is positive a
// background flusher collects entries and posts them as a JSON array.
func NewWebhookShipper(cfg *WebhookConfig) (*WebhookShipper, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ws := &WebhookShipper{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		batchCh: make(chan *Entry, 1000),
		closeCh: make(chan struct{}),
	}
	if cfg.BatchSize > 0 {
		go ws.processBatches()
	}
	return ws, nil
}

func (ws *WebhookShipper) processBatches() {
	flushInterval := ws.cfg.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-ws.batchCh:
			ws.batchMu.Lock()
			ws.batch = append(ws.batch, entry)
			if len(ws.batch) >= ws.cfg.BatchSize {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
		case <-ticker.C:
			ws.batchMu.Lock()
			ws.flushBatch()
			ws.batchMu.Unlock()
		case <-ws.closeCh:
			ws.batchMu.Lock()
			ws.flushBatch()
			ws.batchMu.Unlock()
			return
		}
	}
}

// flushBatch posts and clears the pending batch. Caller holds batchMu.
func (ws *WebhookShipper) flushBatch() {
	if len(ws.batch) == 0 {
		return
	}
	data, err := json.Marshal(ws.batch)
	ws.batch = ws.batch[:0]
	if err != nil {
		slog.Error("failed to marshal audit batch", "error", err)
		return
	}

	timeout := ws.client.Timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ws.send(ctx, data); err != nil {
		slog.Warn("failed to post audit batch", "error", err)
	}
}

// Ship queues the entry when batching, otherwise posts it immediately.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *Entry) error {
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.batchCh <- entry:
			return nil
		default:
			// Queue full; fall through to a direct post rather than drop.
		}
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return ws.send(ctx, data)
}

func (ws *WebhookShipper) send(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("post audit webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("audit webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the batch flusher, flushing any pending entries.
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() { close(ws.closeCh) })
	return nil
}

// FileShipper appends entries as newline-delimited JSON with size-based
// rotation.
type FileShipper struct {
	cfg  *FileConfig
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper opens (or creates) the destination file.
func NewFileShipper(cfg *FileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}
	return &FileShipper{cfg: cfg, file: file}, nil
}

// Ship writes one JSON line, rotating first when the file exceeds the
// configured size.
func (fs *FileShipper) Ship(_ context.Context, entry *Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		if info, err := fs.file.Stat(); err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				slog.Warn("failed to rotate audit file", "error", err)
			}
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}
	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", fs.cfg.Path, i), fmt.Sprintf("%s.%d", fs.cfg.Path, i+1))
	}
	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")
	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	fs.file = file
	return nil
}

// Close closes the file.
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
