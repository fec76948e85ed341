// Package notification delivers alert messages through configured channels
// with a bounded worker pool, so slow providers never stall the engine.
package notification

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/k3a/html2text"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/privacy"
)

// Message is one rendered notification ready for a channel.
type Message struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// bodyTemplate renders the HTML variant. Redaction runs over the rendered
// output, so a network literal reaches an external channel from no field.
var bodyTemplate = template.Must(template.New("body").Parse(`<h2>{{.Subject}}</h2>
<p>{{.Summary}}</p>
<table>
<tr><td>Device</td><td>{{.Device}}</td></tr>
<tr><td>Rule</td><td>{{.RuleName}}</td></tr>
<tr><td>Severity</td><td>{{.Severity}}</td></tr>
<tr><td>Status</td><td>{{.Status}}</td></tr>
<tr><td>Value</td><td>{{printf "%.2f" .Value}} (threshold {{.Operator}} {{printf "%.2f" .Threshold}})</td></tr>
<tr><td>Triggered</td><td>{{.TriggeredAt}}</td></tr>
</table>`))

type bodyData struct {
	Subject     string
	Summary     string
	Device      string
	RuleName    string
	Severity    string
	Status      string
	Value       float64
	Operator    string
	Threshold   float64
	TriggeredAt string
}

// Render builds the message for one instance and kind. With redact set, the
// subject and the fully rendered bodies are scrubbed of network literals, so
// an address leaking in through any field (device name, rule name, free-text
// summary) never reaches an external channel.
func Render(rule *entities.AlertRule, instance *entities.AlertInstance, kind string, redact bool) (*Message, error) {
	subject := subjectFor(rule, instance, kind)
	if redact {
		subject = privacy.RedactNetworkLiterals(subject)
	}

	var html strings.Builder
	err := bodyTemplate.Execute(&html, bodyData{
		Subject:     subject,
		Summary:     instance.Message,
		Device:      instance.DeviceName,
		RuleName:    rule.Name,
		Severity:    instance.Severity,
		Status:      instance.Status,
		Value:       instance.TriggerValue,
		Operator:    rule.Operator,
		Threshold:   instance.ThresholdValue,
		TriggeredAt: instance.TriggeredAt.Format("2006-01-02 15:04:05 MST"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render notification body: %w", err)
	}

	htmlBody := html.String()
	if redact {
		htmlBody = privacy.RedactNetworkLiterals(htmlBody)
	}

	return &Message{
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: html2text.HTML2Text(htmlBody),
	}, nil
}

func subjectFor(rule *entities.AlertRule, instance *entities.AlertInstance, kind string) string {
	base := fmt.Sprintf("[%s] %s - %s", strings.ToUpper(instance.Severity), instance.DeviceName, rule.Name)
	switch kind {
	case entities.NotificationKindEscalation:
		return "ESCALATED: " + base
	case entities.NotificationKindRecovery:
		if instance.Status == entities.AlertAutoResolved {
			return "RESOLVED: " + base
		}
		return base
	default:
		return base
	}
}
