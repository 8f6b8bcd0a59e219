// SPDX-License-Identifier: MIT
package transport

import (
	"github.com/imSoTn/audioreact/internal/analysis"
	applog "github.com/imSoTn/audioreact/internal/log"
)

// ResultLogger is the headless fallback sink: it logs a one-line summary of
// each analysis result at Debug level and transmits nothing. Used when no
// network transport is configured so the pipeline stays observable.
type ResultLogger struct{}

func NewResultLogger() *ResultLogger {
	applog.Debugf("Transport: using result logger sink")
	return &ResultLogger{}
}

// Send logs the result summary. It never fails.
func (l *ResultLogger) Send(data any) error {
	res, ok := data.(analysis.Result)
	if !ok {
		applog.Debugf("Transport: result logger got %T", data)
		return nil
	}
	applog.Debugf("Transport: vol=%.3f dir=%.3f spike=%v bands=%v",
		res.Volume, res.Direction, res.Spike, res.Bands)
	return nil
}

// Close is a no-op.
func (l *ResultLogger) Close() error {
	return nil
}

var _ Transport = (*ResultLogger)(nil)
