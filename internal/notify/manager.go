// Package notify handles threshold alerts with repeat suppression.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrcode/glucopilot/internal/models"
)

// Alert type constants
const (
	alertUrgentLow  = "urgent_low"
	alertLow        = "low"
	alertUrgentHigh = "urgent_high"
	alertHigh       = "high"
)

// Notifier delivers one alert to the user. The Telegram bot implements
// this.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Manager checks glucose status against the thresholds and pushes alerts,
// suppressing repeats within the configured interval.
type Manager struct {
	mu            sync.Mutex
	settings      *models.Settings
	notifier      Notifier
	lastAlertTime map[string]time.Time
	now           func() time.Time
}

// NewManager creates a new alert manager.
func NewManager(settings *models.Settings, notifier Notifier) *Manager {
	return &Manager{
		settings:      settings,
		notifier:      notifier,
		lastAlertTime: make(map[string]time.Time),
		now:           time.Now,
	}
}

// UpdateSettings updates the settings reference.
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// CheckAndNotify checks the glucose status and sends an alert if needed.
func (m *Manager) CheckAndNotify(ctx context.Context, status *models.GlucoseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.notifier == nil {
		return nil
	}

	alertType := m.shouldAlert(status)
	if alertType == "" {
		return nil
	}

	if lastTime, ok := m.lastAlertTime[alertType]; ok {
		if m.settings.RepeatAlertMinutes > 0 {
			repeatDuration := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
			if m.now().Sub(lastTime) < repeatDuration {
				return nil
			}
		} else {
			// No repeat, only alert once per status change.
			return nil
		}
	}

	title, message := m.formatNotification(status, alertType)
	if err := m.notifier.Notify(ctx, title, message); err != nil {
		return err
	}

	m.lastAlertTime[alertType] = m.now()
	return nil
}

// Reset clears the repeat-suppression state for statuses no longer active,
// so the next excursion alerts immediately.
func (m *Manager) Reset(current string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for alertType := range m.lastAlertTime {
		if alertType != current {
			delete(m.lastAlertTime, alertType)
		}
	}
}

// shouldAlert determines if an alert should be sent.
func (m *Manager) shouldAlert(status *models.GlucoseStatus) string {
	switch status.Status {
	case alertUrgentLow:
		if m.settings.EnableUrgentLowAlert {
			return alertUrgentLow
		}
	case alertLow:
		if m.settings.EnableLowAlert {
			return alertLow
		}
	case alertUrgentHigh:
		if m.settings.EnableUrgentHighAlert {
			return alertUrgentHigh
		}
	case alertHigh:
		if m.settings.EnableHighAlert {
			return alertHigh
		}
	}
	return ""
}

// formatNotification creates the notification title and message.
func (m *Manager) formatNotification(status *models.GlucoseStatus, alertType string) (string, string) {
	var title, message string
	var valueStr string

	if m.settings.Unit == "mmol/L" {
		valueStr = fmt.Sprintf("%.1f mmol/L", status.ValueMmol)
	} else {
		valueStr = fmt.Sprintf("%d mg/dL", status.Value)
	}

	switch alertType {
	case alertUrgentLow:
		title = "URGENT LOW GLUCOSE"
		message = fmt.Sprintf("Glucose is critically low: %s %s", valueStr, status.Trend)
	case alertLow:
		title = "Low Glucose"
		message = fmt.Sprintf("Glucose is low: %s %s", valueStr, status.Trend)
	case alertUrgentHigh:
		title = "URGENT HIGH GLUCOSE"
		message = fmt.Sprintf("Glucose is critically high: %s %s", valueStr, status.Trend)
	case alertHigh:
		title = "High Glucose"
		message = fmt.Sprintf("Glucose is high: %s %s", valueStr, status.Trend)
	}

	return title, message
}
