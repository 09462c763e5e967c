// internal/workers/classification/fetch-bump-questions/handler.go
package fetchbumpquestions

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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "fetch-bump-questions"

type Catalog interface {
	Get(organization string) (*rulebook.Rulebook, bool)
}

// Handler serves the question list for an interactive entry form, along with
// what is still unanswered given the answers collected so far.
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
}

// Execute lists the questions of the requested class (or of every class) and
// the ones still pending. Bumped classes contribute nothing to Pending since
// further answers cannot change their verdict.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	_, span := h.obs.StartSpan(ctx, TaskType, attribute.String("organization", input.Organization))
	defer span.End()

	rb, ok := h.catalog.Get(input.Organization)
	if !ok {
		err := errors.NewRulebookNotFoundError(input.Organization)
		span.SetStatus(codes.Error, err.Message)
		return nil, err
	}

	classes := rb.Classes()
	if input.ClassName != "" {
		class, ok := rb.Class(input.ClassName)
		if !ok {
			err := &rulebook.ValidationError{
				Kind:  rulebook.KindUnknownClass,
				Scope: "rulebook " + rb.Organization(),
				Name:  input.ClassName,
			}
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		classes = []*rulebook.Class{class}
	}

	output := &Output{
		Organization: rb.Organization(),
		ClassName:    input.ClassName,
		Questions:    make([]ClassQuestions, 0, len(classes)),
		Pending:      []classifier.PendingQuestion{},
	}
	for _, class := range classes {
		output.Questions = append(output.Questions, ClassQuestions{
			Class:      class.Name(),
			Subclasses: class.Subclasses(),
			Questions:  class.Questions(),
		})
	}

	report := classifier.Classify(rb, input.Answers)
	for _, p := range classifier.Pending(rb, report) {
		if input.ClassName == "" || p.Class == input.ClassName {
			output.Pending = append(output.Pending, p)
		}
	}
	if len(output.Pending) > 0 {
		next := output.Pending[0]
		output.NextQuestion = &next
	}
	output.Complete = len(output.Pending) == 0

	span.SetAttributes(attribute.Int("pending", len(output.Pending)))
	h.logger.Debug("bump questions resolved", map[string]interface{}{
		"organization": rb.Organization(),
		"className":    input.ClassName,
		"pending":      len(output.Pending),
	})

	return output, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	bpmnErr := h.errorHandler.HandleJobError(ctx, client, job, err)

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
}

func parseInput(variables string) (*Input, error) {
	result, err := validation.ValidateJSON(validation.SchemaFetchBumpQuestions, variables)
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
