//go:build windows || plan9

package audit

import "fmt"

// log/syslog does not build on these platforms; the shipper is rejected at
// configuration time instead of silently dropping entries.
func newSyslogShipper(*SyslogConfig) (Shipper, error) {
	return nil, fmt.Errorf("syslog shipper is not supported on this platform")
}
