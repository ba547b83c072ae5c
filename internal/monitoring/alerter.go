package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertInstrumentFailureRate AlertType = "instrument_failure_rate"
	AlertRunFailure            AlertType = "run_failure"
	AlertStaleSources          AlertType = "stale_sources"
)

// minInstrumentsForRate avoids alerting on tiny samples.
const minInstrumentsForRate = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a HealthSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *HealthSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Instruments >= minInstrumentsForRate && snap.FailureRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertInstrumentFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Instrument failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d attempted in last %dh)",
				snap.FailureRate*100, a.cfg.FailureRateThreshold*100,
				snap.InstrumentFails, snap.Instruments, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailureRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.InstrumentFails,
				"attempted":    snap.Instruments,
			},
			Timestamp: now,
		})
	}

	if snap.RunsFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailure,
			Severity: "high",
			Message:  fmt.Sprintf("%d extract run(s) failed in last %dh", snap.RunsFailed, snap.LookbackHours),
			Details: map[string]any{
				"failed_runs": snap.RunsFailed,
				"total_runs":  snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	if len(snap.StaleSites) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStaleSources,
			Severity: "medium",
			Message:  fmt.Sprintf("%d source(s) did not write a snapshot on their last run: %v", len(snap.StaleSites), snap.StaleSites),
			Details: map[string]any{
				"sites": snap.StaleSites,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
