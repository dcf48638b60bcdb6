package ipc

import (
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/runtime"
)

// ReportListener writes a StepReport frame for every finished step.
type ReportListener struct {
	encoder *FrameEncoder
	logger  *log.Logger
}

var _ runtime.Listener = (*ReportListener)(nil)

// NewReportListener creates a listener writing through encoder.
func NewReportListener(encoder *FrameEncoder, logger *log.Logger) *ReportListener {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ReportListener{encoder: encoder, logger: logger}
}

// StepFinished writes the result's report. Write failures are logged.
func (l *ReportListener) StepFinished(result *runtime.ExecutionResult) {
	report := result.Report()
	if err := l.encoder.WriteReport(&report); err != nil {
		l.logger.Error("failed to write step report frame", map[string]any{
			"invocation_id": report.InvocationID,
			"error":         err.Error(),
		})
	}
}
