// Package notification wires a sender.Provider up as an
// external.Notifier: it formats a RunSummary into a sender.Message and
// dispatches it, so the orchestrator core never touches message text
// directly (spec.md §6: "Core never formats messages itself").
package notification

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/pkg/errors"

	"github.com/pacepace/robocurse/external"
	"github.com/pacepace/robocurse/notification/sender"
)

const subjectTemplate = `[{{.Status}}] {{.Summary.ProfileName}} — {{.Summary.Completed}}/{{.Summary.TotalChunks}} chunks`

const bodyTemplateText = `Session {{.Summary.SessionID}} for profile {{.Summary.ProfileName}} finished: {{.Status}}
Started: {{.Summary.StartTime}}
Ended:   {{.Summary.EndTime}}

Chunks completed: {{.Summary.Completed}}
Chunks failed:    {{.Summary.Failed}}
Chunks warned:    {{.Summary.Warnings}}
Bytes copied:     {{.Summary.BytesCopied}}
Files copied:     {{.Summary.FilesCopied}}
Files skipped:    {{.Summary.FilesSkipped}}
Files failed:     {{.Summary.FilesFailed}}
{{if .Summary.StopReason}}
Stop reason: {{.Summary.StopReason}}
{{end}}`

var (
	subjectTmpl = template.Must(template.New("subject").Parse(subjectTemplate))
	bodyTmpl    = template.Must(template.New("body").Parse(bodyTemplateText))
)

type templateData struct {
	Summary external.RunSummary
	Status  external.Status
}

// SenderNotifier adapts a sender.Provider into an external.Notifier.
type SenderNotifier struct {
	Provider sender.Provider
}

// NewSenderNotifier wraps provider.
func NewSenderNotifier(provider sender.Provider) *SenderNotifier {
	return &SenderNotifier{Provider: provider}
}

func (n *SenderNotifier) NotifyCompletion(ctx context.Context, summary external.RunSummary, status external.Status, attachments []external.Attachment) error {
	data := templateData{Summary: summary, Status: status}

	var subjectBuf, bodyBuf bytes.Buffer

	if err := subjectTmpl.Execute(&subjectBuf, data); err != nil {
		return errors.Wrap(err, "rendering notification subject")
	}

	if err := bodyTmpl.Execute(&bodyBuf, data); err != nil {
		return errors.Wrap(err, "rendering notification body")
	}

	headers := map[string]string{}
	for i, a := range attachments {
		headers[fmt.Sprintf("X-Attachment-%d", i)] = a.Path
	}

	msg := &sender.Message{
		Subject:  subjectBuf.String(),
		Severity: severityFor(status),
		Body:     bodyBuf.String(),
		Headers:  headers,
	}

	return n.Provider.Send(ctx, msg)
}

func severityFor(status external.Status) sender.Severity {
	switch status {
	case external.Success:
		return sender.SeverityVerbose
	case external.Warning:
		return sender.SeverityWarning
	case external.Failed:
		return sender.SeverityError
	default:
		return sender.SeverityVerbose
	}
}
