package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type syncMetrics struct {
	logger         *log.Logger
	start          time.Time
	authDuration   time.Duration
	commitDuration time.Duration
	messageType    string
	conflict       bool
	errorStage     string
}

func newSyncMetrics(logger *log.Logger) *syncMetrics {
	return &syncMetrics{logger: logger, start: time.Now()}
}

func (m *syncMetrics) ObserveAuth(d time.Duration) {
	if d <= 0 {
		return
	}
	m.authDuration = d
}

func (m *syncMetrics) ObserveCommit(d time.Duration) {
	if d <= 0 {
		return
	}
	m.commitDuration = d
}

func (m *syncMetrics) SetMessageType(t string) {
	m.messageType = t
}

func (m *syncMetrics) SetConflict(conflict bool) {
	m.conflict = conflict
}

func (m *syncMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *syncMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    "/api/sync",
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
		"conflict": m.conflict,
	}
	if m.messageType != "" {
		fields["message_type"] = m.messageType
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.commitDuration > 0 {
		fields["commit_ms"] = durationToMillis(m.commitDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("sync.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
