// Package notification delivers recommendation-change alerts to external
// channels (Telegram, generic webhooks, the log).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trend-signals/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Symbol  string     `json:"symbol"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	TS      time.Time  `json:"ts"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to a structured logger.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	n.log.Info("alert",
		"level", string(alert.Level),
		"symbol", alert.Symbol,
		"title", alert.Title,
		"message", alert.Message,
	)
	return nil
}

// Multi sends every alert to each notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AlertFor builds the alert for a recommendation change from prev to rec.
// A confirmed BUY or SELL is a warning; a fall back to HOLD is informational.
func AlertFor(prev model.Recommendation, rec model.TrendAnalysis) Alert {
	a := Alert{
		Level:  AlertInfo,
		Symbol: rec.Symbol,
		TS:     rec.UpdatedAt,
	}
	if rec.Actionable() {
		a.Level = AlertWarning
		a.Title = fmt.Sprintf("%s %s", rec.Recommendation, rec.Symbol)
		a.Message = fmt.Sprintf("%s via %s: score %.1f, confidence %.1f (%s), quality %s",
			rec.Direction, strings.ReplaceAll(string(rec.Family), "_", " "),
			rec.Score, rec.Confidence, rec.StrengthClass, rec.Quality)
		return a
	}
	a.Title = fmt.Sprintf("%s %s -> HOLD", rec.Symbol, prev)
	a.Message = fmt.Sprintf("signal withdrawn (%s)", rec.Reason)
	return a
}
