package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"rulebook-classifier/internal/common/config"
	"rulebook-classifier/internal/common/errors"
	"rulebook-classifier/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestClient() *Client {
	return &Client{
		config: &ClientConfig{
			GatewayAddress:    "localhost:26500",
			ConnectionTimeout: time.Second,
			RetryConfig: &RetryConfig{
				MaxRetries: 2,
				BaseDelay:  time.Millisecond,
				MaxDelay:   5 * time.Millisecond,
			},
		},
	}
}

// ==========================
// Config Tests
// ==========================

func TestConfigFromApp(t *testing.T) {
	cfg := ConfigFromApp(config.CamundaConfig{
		BrokerAddress:  "zeebe:26500",
		RequestTimeout: 5000,
		Plaintext:      true,
	})

	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.True(t, cfg.UsePlaintextConnection)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Same(t, DefaultRetryConfig, cfg.RetryConfig)

	assert.Equal(t, 30*time.Second, ConfigFromApp(config.CamundaConfig{}).RequestTimeout)
}

// ==========================
// Retry Tests
// ==========================

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"write: broken pipe", true},
		{"NOT_FOUND: expected to find job with key 42", false},
		{"INVALID_ARGUMENT: variables are not a document", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)))
		})
	}
}

func TestIsRetryableZeebeError_GRPCStatus(t *testing.T) {
	tests := []struct {
		code codes.Code
		want bool
	}{
		{codes.Unavailable, true},
		{codes.DeadlineExceeded, true},
		{codes.ResourceExhausted, true},
		{codes.NotFound, false},
		{codes.InvalidArgument, false},
		// the message mentions a timeout but the code says it is permanent
		{codes.FailedPrecondition, false},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := status.Error(tt.code, "job worker timeout exceeded")
			assert.Equal(t, tt.want, isRetryableZeebeError(err))
		})
	}
}

func TestExecuteWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		c := createTestClient()
		calls := 0

		result, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			if calls < 3 {
				return nil, stderrors.New("connection reset by peer")
			}
			return "ok", nil
		}, "complete job")

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent failure is not retried", func(t *testing.T) {
		c := createTestClient()
		calls := 0

		_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			return nil, status.Error(codes.NotFound, "Command 'COMPLETE' rejected with code 'NOT_FOUND': Expected to find job with key '42', but no such job was found")
		}, "complete job")

		require.Error(t, err)
		assert.Equal(t, 1, calls)

		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, errors.ErrorCode("RESOURCE_NOT_FOUND"), stdErr.Code)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		c := createTestClient()
		calls := 0

		_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			return nil, stderrors.New("deadline exceeded")
		}, "publish message")

		require.Error(t, err)
		assert.Equal(t, 3, calls)

		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, errors.ErrorCode("TIMEOUT_ERROR"), stdErr.Code)
		assert.Contains(t, stdErr.Details, "after 2 attempts")
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		c := createTestClient()
		c.config.RetryConfig.BaseDelay = time.Hour
		c.config.RetryConfig.MaxDelay = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
			return nil, stderrors.New("unavailable")
		}, "complete job")

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		code errors.ErrorCode
	}{
		{"connection refused", "EXTERNAL_SERVICE_ERROR"},
		{"deadline exceeded", "TIMEOUT_ERROR"},
		{"job not found", "RESOURCE_NOT_FOUND"},
		{"NOT_FOUND: job 42", "RESOURCE_NOT_FOUND"},
		{"permission denied", "AUTHENTICATION_ERROR"},
		{"something odd", "EXTERNAL_SERVICE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := mapZeebeError(stderrors.New(tt.msg), "activate jobs", 0)

			var stdErr *errors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Contains(t, stdErr.Details, "activate jobs")
		})
	}
}

func TestMapZeebeError_GRPCStatus(t *testing.T) {
	tests := []struct {
		code codes.Code
		want errors.ErrorCode
	}{
		{codes.NotFound, "RESOURCE_NOT_FOUND"},
		{codes.DeadlineExceeded, "TIMEOUT_ERROR"},
		{codes.PermissionDenied, "AUTHENTICATION_ERROR"},
		{codes.Unauthenticated, "AUTHENTICATION_ERROR"},
		{codes.Unavailable, "EXTERNAL_SERVICE_ERROR"},
		{codes.InvalidArgument, "EXTERNAL_SERVICE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := mapZeebeError(status.Error(tt.code, "Command 'COMPLETE' rejected"), "complete job", 0)

			var stdErr *errors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, tt.want, stdErr.Code)
		})
	}
}

// ==========================
// Send Tests
// ==========================

func TestSend(t *testing.T) {
	t.Run("without a runner the command runs once", func(t *testing.T) {
		calls := 0
		_, err := Send(context.Background(), nil, "complete job", func(context.Context) (interface{}, error) {
			calls++
			return nil, status.Error(codes.Unavailable, "gateway down")
		})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("a client runner retries transient failures", func(t *testing.T) {
		calls := 0
		result, err := Send(context.Background(), createTestClient(), "complete job", func(context.Context) (interface{}, error) {
			calls++
			if calls == 1 {
				return nil, status.Error(codes.Unavailable, "gateway down")
			}
			return "completed", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "completed", result)
		assert.Equal(t, 2, calls)
	})
}

// ==========================
// Worker Tests
// ==========================

func TestOpenWorker_Disabled(t *testing.T) {
	w := OpenWorker(nil, "classify-entrant", config.WorkerConfig{Enabled: false}, nil, logger.NewTestLogger(t))
	assert.Nil(t, w)

	// stopping a disabled worker is a no-op
	w.Stop()
}
