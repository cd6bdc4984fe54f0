// Package notifications delivers compliance alerts through Shoutrrr
// services (email, Slack, Discord, etc.), gated by a minimum severity.
package notifications

import (
	"fmt"

	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
	"github.com/sirupsen/logrus"

	"github.com/provmon/provmon/internal/database/models"
)

var severityRank = map[string]int{
	"low":      0,
	"medium":   1,
	"high":     2,
	"critical": 3,
}

// Notifier handles sending notifications via Shoutrrr. A nil router means
// notifications are disabled; every method is then a no-op.
type Notifier struct {
	sr          *router.ServiceRouter
	minSeverity string
}

// NewNotifier initializes a new Notifier with the provided Shoutrrr URLs.
// With no URLs the returned Notifier is disabled.
func NewNotifier(cfg *NotificationConfig) (*Notifier, error) {
	if len(cfg.ShoutrrrURLs) == 0 {
		return &Notifier{minSeverity: cfg.MinSeverity}, nil
	}
	sr, err := router.New(nil, cfg.ShoutrrrURLs...)
	if err != nil {
		return nil, err
	}
	return &Notifier{sr: sr, minSeverity: cfg.MinSeverity}, nil
}

// Send sends a notification message to all configured services.
func (n *Notifier) Send(title, message string) {
	if n == nil || n.sr == nil {
		return
	}
	params := types.Params{
		"title": title,
	}
	errors := n.sr.Send(message, &params)
	for _, err := range errors {
		if err != nil {
			logrus.WithError(err).Error("Failed to send notification")
		}
	}
	logrus.WithField("title", title).Info("Notification sent")
}

// NotifyDrift sends an alert for a drift event if its severity meets the
// configured threshold.
func (n *Notifier) NotifyDrift(event models.DriftEvent) {
	if n == nil {
		return
	}
	if severityRank[event.Severity] < severityRank[n.minSeverity] {
		return
	}
	title := fmt.Sprintf("Compliance drift: %s (%s)", event.Category, event.Severity)
	message := fmt.Sprintf("Provider %s: %s detected for %s on %s",
		event.NPI, event.DriftType, event.Category, event.PageURL)
	n.Send(title, message)
}
