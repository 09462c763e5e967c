// internal/workers/classification/classify-entrant/handler.go
package classifyentrant

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"rulebook-classifier/internal/classifier"
	"rulebook-classifier/internal/common/camunda"
	"rulebook-classifier/internal/common/errors"
	"rulebook-classifier/internal/common/logger"
	"rulebook-classifier/internal/common/metrics"
	"rulebook-classifier/internal/common/observability"
	"rulebook-classifier/internal/common/validation"
	"rulebook-classifier/internal/rulebook"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "classify-entrant"

// Catalog resolves the rulebook currently published for an organization.
type Catalog interface {
	Get(organization string) (*rulebook.Rulebook, bool)
}

type Handler struct {
	config       *Config
	catalog      Catalog
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	commands     camunda.CommandRunner
	logger       logger.Logger
}

func NewHandler(cfg *Config, catalog Catalog, obs *observability.Observability, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		catalog:      catalog,
		obs:          obs,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

// WithCommandRunner routes job completion through r so transient gateway
// failures are retried.
func (h *Handler) WithCommandRunner(r camunda.CommandRunner) *Handler {
	h.commands = r
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := parseInput(job.GetVariables())
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.failJob(ctx, client, job, errors.NewInternalError(err), start)
		return
	}
	if _, err := camunda.Send(ctx, h.commands, "complete job", func(ctx context.Context) (interface{}, error) {
		return cmd.Send(ctx)
	}); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "success")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "success")

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":           job.GetKey(),
		"classificationId": output.ClassificationID,
		"eligibleClasses":  len(output.EligibleClasses),
		"durationMs":       time.Since(start).Milliseconds(),
	})
}

// Execute classifies one entrant against the organization's published
// rulebook. Unknown answer entries end up as report warnings, never errors.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.String("organization", input.Organization))
	defer span.End()

	rb, ok := h.catalog.Get(input.Organization)
	if !ok {
		err := errors.NewRulebookNotFoundError(input.Organization)
		span.SetStatus(codes.Error, err.Message)
		return nil, err
	}

	report := classifier.Classify(rb, input.Answers)

	metrics.RecordReport(report)
	for status, n := range report.Counts() {
		h.obs.RecordVerdict(ctx, report.Organization, string(status), n)
	}

	if len(report.Warnings) > 0 {
		warnings := make([]string, 0, len(report.Warnings))
		for _, w := range report.Warnings {
			warnings = append(warnings, w.String())
		}
		h.logger.Warn("answers reference unknown entries", map[string]interface{}{
			"organization": input.Organization,
			"entrantId":    input.EntrantID,
			"warnings":     warnings,
		})
	}

	eligible := report.EligibleClasses()
	span.SetAttributes(
		attribute.Int("eligible", len(eligible)),
		attribute.Int("warnings", len(report.Warnings)),
	)

	return &Output{
		ClassificationID: uuid.NewString(),
		Organization:     input.Organization,
		EntrantID:        input.EntrantID,
		Report:           report,
		EligibleClasses:  eligible,
		HasWarnings:      len(report.Warnings) > 0,
	}, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	bpmnErr := h.errorHandler.HandleJobError(ctx, client, job, err)

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
}

func parseInput(variables string) (*Input, error) {
	result, err := validation.ValidateJSON(validation.SchemaClassifyEntrant, variables)
	if err != nil {
		return nil, errors.NewParseError(err)
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewParseError(err)
	}
	if input.Answers == nil {
		input.Answers = classifier.Answers{}
	}
	return &input, nil
}
