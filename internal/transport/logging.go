// SPDX-License-Identifier: MIT
package transport

import (
	applog "radar/internal/log"
	"sync/atomic"
)

// LoggingTransport implements the Transport interface by logging frames.
type LoggingTransport struct {
	sent atomic.Int64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs a one-line summary of the frame.
func (lt *LoggingTransport) Send(data any) error {
	lt.sent.Add(1)
	switch f := data.(type) {
	case ResultFrame:
		applog.Infof("Transport: Run %s %s, %d traces x %d samples (%s) in %.1fms",
			f.RunID, f.Status, f.Traces, f.TraceLength, f.Domain, f.ElapsedMs)
		for _, s := range f.Stages {
			applog.Infof("Transport:   [%d] %-16s %-40s %d->%d traces, %d->%d samples, dropped %d, %.2fms",
				s.Index, s.Kind, s.Params, s.InTraces, s.OutTraces, s.InLength, s.OutLength, s.Dropped, s.DurationMs)
		}
	case TraceFrame:
		applog.Debugf("Transport: Trace %d (key %v) peak at sample %d, gates %v", f.Index, f.Key, f.Peak, f.Gates)
	default:
		applog.Debugf("Transport: Received (%T)", data)
	}
	return nil // Logging transport never fails to "send"
}

// Sent returns how many frames have been logged.
func (lt *LoggingTransport) Sent() int64 { return lt.sent.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("Transport: LoggingTransport closed after %d frames", lt.Sent())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
