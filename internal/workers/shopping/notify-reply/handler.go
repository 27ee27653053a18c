// internal/workers/shopping/notify-reply/handler.go
package notifyreply

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	commonerrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/common/validation"
	"shopping-assistant/internal/models"
)

const (
	TaskType = "shopping-reply-notify"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Handler struct {
	config *Config
	email  EmailSender
	sms    SMSSender
	schema *validation.Schema
	errors *commonerrors.ErrorHandler
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
}

// NewHandler builds the worker. A nil sender leaves its channel disabled.
func NewHandler(config *Config, email EmailSender, sms SMSSender, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		email:  email,
		sms:    sms,
		schema: validation.MustCompile(inputSchema),
		errors: commonerrors.NewErrorHandler(l),
		obs:    obs,
		logger: l,
		now:    time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.parseAndExecute(ctx, job.Variables)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	if err != nil {
		stdErr := commonerrors.Normalize(err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errors.HandleJobError(ctx, client, job, stdErr)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseAndExecute(ctx context.Context, variables string) (*Output, error) {
	if result := h.schema.ValidateJSON([]byte(variables)); !result.Valid {
		return nil, commonerrors.NewInputInvalidError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, commonerrors.NewInputInvalidError(fmt.Sprintf("parse input: %v", err))
	}
	return h.execute(ctx, &input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	out := &Output{
		ID:        uuid.New().String(),
		SessionID: input.SessionID,
		Channel:   input.Channel,
		Recipient: input.Recipient,
		Status:    models.NotificationDisabled,
	}

	var (
		messageID string
		err       error
	)
	switch input.Channel {
	case models.ChannelEmail:
		if !validation.ValidateEmail(input.Recipient) {
			return nil, commonerrors.NewInputInvalidError("recipient is not an email address")
		}
		if !h.config.EmailEnabled || h.email == nil {
			h.logDisabled(out)
			return out, nil
		}
		subject := input.Subject
		if subject == "" {
			subject = h.config.DefaultSubject
		}
		messageID, err = h.email.SendEmail(ctx, input.Recipient, subject, input.Response)

	case models.ChannelSMS:
		if !validation.ValidatePhone(input.Recipient) {
			return nil, commonerrors.NewInputInvalidError("recipient is not an E.164 phone number")
		}
		if !h.config.SMSEnabled || h.sms == nil {
			h.logDisabled(out)
			return out, nil
		}
		messageID, err = h.sms.SendSMS(ctx, input.Recipient, truncate(input.Response, maxSMSLength))

	default:
		return nil, commonerrors.NewNotificationChannelUnknownError(input.Channel)
	}

	if err != nil {
		h.logger.Warn("reply delivery failed", map[string]interface{}{
			"channel":   input.Channel,
			"sessionId": input.SessionID,
			"error":     err.Error(),
		})
		return nil, commonerrors.NewNotificationSendFailedError(input.Channel, err)
	}

	out.Status = models.NotificationSent
	out.MessageID = messageID
	out.SentAt = h.now().UTC().Format(time.RFC3339)

	h.logger.Info("reply delivered", map[string]interface{}{
		"channel":        out.Channel,
		"notificationId": out.ID,
		"messageId":      out.MessageID,
	})
	return out, nil
}

func (h *Handler) logDisabled(out *Output) {
	h.logger.Info("channel disabled, reply not sent", map[string]interface{}{
		"channel":        out.Channel,
		"notificationId": out.ID,
	})
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Execute runs the job logic without a Zeebe client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
