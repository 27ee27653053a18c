// internal/workers/shopping/ask-assistant/handler.go
package askassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"shopping-assistant/internal/assistant"
	commonerrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/common/validation"
)

const (
	TaskType = "shopping-assistant-ask"
)

// Asker is the assistant as seen by the worker.
type Asker interface {
	Ask(ctx context.Context, input string) (assistant.Reply, error)
	Deadline() time.Duration
}

type Handler struct {
	config *Config
	asker  Asker
	schema *validation.Schema
	errors *commonerrors.ErrorHandler
	obs    *observability.Observability
	logger logger.Logger
}

func NewHandler(config *Config, asker Asker, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		asker:  asker,
		schema: validation.MustCompile(inputSchema),
		errors: commonerrors.NewErrorHandler(l),
		obs:    obs,
		logger: l,
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
	reply, err := h.asker.Ask(ctx, input.Input)
	if err != nil {
		return nil, assistant.StandardError(err, reply, h.asker.Deadline())
	}

	h.logger.Info("assistant answered", map[string]interface{}{
		"sessionId":  reply.SessionID,
		"path":       string(reply.Path),
		"iterations": reply.Iterations,
	})

	return &Output{
		Response:   reply.Response,
		SessionID:  reply.SessionID,
		Path:       string(reply.Path),
		Outcome:    string(reply.Outcome),
		Iterations: reply.Iterations,
		Fallback:   reply.Fallback,
	}, nil
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

// Execute runs the job logic without a Zeebe client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
