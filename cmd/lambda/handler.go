package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ibs-source/logtag-forwarder/internal/engine"
	"github.com/ibs-source/logtag-forwarder/internal/log"
)

// runner runs one engine cycle
type runner interface {
	Run(ctx context.Context, data []byte) (*engine.Report, error)
}

// handler adapts CloudWatch Logs subscription invocations to engine cycles.
// The engine lives as long as the container, so failed batches are retried
// by the next invocation.
type handler struct {
	engine runner
	log    *log.Logger
}

// Handle runs one cycle for a subscription event
func (h *handler) Handle(ctx context.Context, ev events.CloudwatchLogsEvent) error {
	report, err := h.engine.Run(ctx, []byte(ev.AWSLogs.Data))
	if err != nil {
		h.log.Error("Invocation failed: %v", err)
		return err
	}
	h.log.Debug("Invocation %s finished: %s", report.CycleID, report.Result)
	return nil
}
