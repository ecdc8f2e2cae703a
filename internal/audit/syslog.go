//go:build !windows && !plan9

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/syslog"
	"strings"
)

// SyslogShipper writes each entry as one JSON record to a syslog daemon,
// local or remote.
type SyslogShipper struct {
	w *syslog.Writer
}

func newSyslogShipper(cfg *SyslogConfig) (Shipper, error) {
	tag := cfg.Tag
	if tag == "" {
		tag = "tavernkeep-audit"
	}
	facility, err := syslogFacility(cfg.Facility)
	if err != nil {
		return nil, err
	}
	w, err := syslog.Dial(cfg.Network, cfg.Address, facility|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, fmt.Errorf("dial syslog: %w", err)
	}
	return &SyslogShipper{w: w}, nil
}

// Ship writes the entry at notice severity for deletes and info otherwise,
// so retention rules on the receiving side can treat destructive actions
// differently.
func (ss *SyslogShipper) Ship(_ context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	switch entry.Action {
	case ActionDelete, ActionBulkDelete:
		err = ss.w.Notice(string(data))
	default:
		err = ss.w.Info(string(data))
	}
	if err != nil {
		return fmt.Errorf("write audit entry to syslog: %w", err)
	}
	return nil
}

// Close closes the syslog connection.
func (ss *SyslogShipper) Close() error {
	return ss.w.Close()
}

// syslogFacility maps the config string to a syslog facility. Empty
// defaults to user.
func syslogFacility(name string) (syslog.Priority, error) {
	switch strings.ToLower(name) {
	case "", "user":
		return syslog.LOG_USER, nil
	case "daemon":
		return syslog.LOG_DAEMON, nil
	case "auth":
		return syslog.LOG_AUTH, nil
	case "local0":
		return syslog.LOG_LOCAL0, nil
	case "local1":
		return syslog.LOG_LOCAL1, nil
	case "local2":
		return syslog.LOG_LOCAL2, nil
	case "local3":
		return syslog.LOG_LOCAL3, nil
	case "local4":
		return syslog.LOG_LOCAL4, nil
	case "local5":
		return syslog.LOG_LOCAL5, nil
	case "local6":
		return syslog.LOG_LOCAL6, nil
	case "local7":
		return syslog.LOG_LOCAL7, nil
	default:
		return 0, fmt.Errorf("unknown syslog facility %q", name)
	}
}
