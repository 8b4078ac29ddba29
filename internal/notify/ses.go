// Package notify sends batch-completion notifications over Amazon SES.
// Notification is optional and best-effort: generation never fails because
// an email did not go out.
package notify

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/alexwday/report-designer/internal/common/config"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
	"github.com/alexwday/report-designer/internal/generation"
)

// Notifier announces finished batch jobs.
type Notifier interface {
	BatchCompleted(ctx context.Context, snapshot generation.JobSnapshot) error
}

// SESNotifier emails a job summary to the configured recipients.
type SESNotifier struct {
	client     *ses.Client
	sender     string
	recipients []string
	log        logger.Logger
}

func NewSES(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*SESNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return &SESNotifier{
		client:     ses.NewFromConfig(awsCfg),
		sender:     cfg.Sender,
		recipients: cfg.Recipients,
		log:        log,
	}, nil
}

func (n *SESNotifier) BatchCompleted(ctx context.Context, snapshot generation.JobSnapshot) error {
	if len(n.recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Report generation %s: %d/%d subsections", snapshot.Status, completedCount(snapshot), snapshot.Total)
	body := buildBody(snapshot)

	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      &n.sender,
		Destination: &types.Destination{ToAddresses: n.recipients},
		Message: &types.Message{
			Subject: &types.Content{Data: &subject},
			Body:    &types.Body{Text: &types.Content{Data: &body}},
		},
	})
	if err != nil {
		n.log.WithError(err).Warn("batch completion email failed", map[string]interface{}{"job_id": snapshot.JobID})
		return errors.NewNotificationSendFailedError(err)
	}

	n.log.Info("batch completion email sent", map[string]interface{}{
		"job_id":     snapshot.JobID,
		"recipients": len(n.recipients),
	})
	return nil
}

func completedCount(snapshot generation.JobSnapshot) int {
	count := 0
	for _, item := range snapshot.Subsections {
		if item.Status == generation.StatusCompleted {
			count++
		}
	}
	return count
}

func buildBody(snapshot generation.JobSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch generation job %s finished with status %s.\n", snapshot.JobID, snapshot.Status)
	fmt.Fprintf(&b, "Template: %s\n", snapshot.TemplateID)
	fmt.Fprintf(&b, "Subsections: %d total, %d completed.\n", snapshot.Total, completedCount(snapshot))

	var failed []string
	for _, item := range snapshot.Subsections {
		if item.Status == generation.StatusFailed {
			failed = append(failed, fmt.Sprintf("- %s / %s: %s", item.SectionTitle, item.Title, item.Error))
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nFailed subsections:\n")
		b.WriteString(strings.Join(failed, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// NoopNotifier is used when notifications are disabled.
type NoopNotifier struct{}

func (NoopNotifier) BatchCompleted(context.Context, generation.JobSnapshot) error { return nil }
