package temporal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// =============================================================================
// Workflow Identifiers
// =============================================================================

// Workflow ID constants. These are defined here (not in the workflows
// package) so that both the server layer and the workflow implementation can
// reference them without creating a dependency from server -> workflows.
const (
	// SweepScheduleWorkflowID is the fixed workflow ID of the recurring
	// retention sweep. Using a fixed ID makes scheduling idempotent: a second
	// EnsureSweepSchedule call finds the running cron workflow and backs off.
	SweepScheduleWorkflowID = "retention-sweep"

	// ManualSweepWorkflowIDPrefix prefixes one-off, operator-triggered sweep
	// runs so they never collide with the cron schedule.
	ManualSweepWorkflowIDPrefix = "retention-sweep-manual"
)

// Default timeout constants for workflow execution and health checks.
const (
	// DefaultSweepRunTimeout is the maximum time a single sweep run is
	// allowed to take.
	DefaultSweepRunTimeout = 1 * time.Hour

	// DefaultHealthCheckTimeout is the timeout for Temporal server health checks.
	DefaultHealthCheckTimeout = 5 * time.Second
)

// =============================================================================
// Sentinel Errors
// =============================================================================

// Sentinel categories for Temporal failures. Callers match with errors.Is
// rather than inspecting SDK service error types.
var (
	ErrWorkflowNotFound       = errors.New("workflow not found")
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")
	ErrClientClosed           = errors.New("client closed")
	ErrConnectionFailed       = errors.New("connection failed")
	ErrNamespaceNotFound      = errors.New("namespace not found")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrResourceExhausted      = errors.New("resource exhausted")
	ErrDeadlineExceeded       = errors.New("deadline exceeded")
)

// =============================================================================
// Error Helpers
// =============================================================================

// TemporalError carries the failed operation, the sentinel category, and
// the workflow identifiers involved.
type TemporalError struct {
	Op         string
	Kind       error
	WorkflowID string
	RunID      string
	Err        error
}

func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s", e.WorkflowID)
		if e.RunID != "" {
			msg += fmt.Sprintf(", runID=%s", e.RunID)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *TemporalError) Unwrap() error { return e.Err }

// Is matches against the sentinel category so errors.Is(err, ErrX) works.
func (e *TemporalError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func isServiceErr[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// classify maps a Temporal SDK error to one of the sentinel categories.
func classify(err error) error {
	switch {
	case isServiceErr[*serviceerror.NotFound](err):
		return ErrWorkflowNotFound
	case isServiceErr[*serviceerror.WorkflowExecutionAlreadyStarted](err):
		return ErrWorkflowAlreadyStarted
	case isServiceErr[*serviceerror.NamespaceNotFound](err):
		return ErrNamespaceNotFound
	case isServiceErr[*serviceerror.PermissionDenied](err):
		return ErrPermissionDenied
	case isServiceErr[*serviceerror.InvalidArgument](err):
		return ErrInvalidArgument
	case isServiceErr[*serviceerror.ResourceExhausted](err):
		return ErrResourceExhausted
	case isServiceErr[*serviceerror.DeadlineExceeded](err):
		return ErrDeadlineExceeded
	case isServiceErr[*serviceerror.Unavailable](err):
		return ErrConnectionFailed
	case errors.Is(err, context.DeadlineExceeded):
		return ErrDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return ErrClientClosed
	default:
		return ErrConnectionFailed
	}
}

// wrapTemporalError converts an SDK error into a *TemporalError. Nil passes
// through untouched.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}
	return &TemporalError{
		Op:         op,
		Kind:       classify(err),
		WorkflowID: workflowID,
		RunID:      runID,
		Err:        err,
	}
}

// IsWorkflowNotFound reports whether err is in the not-found category.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowAlreadyStarted reports whether err is in the already-started
// category.
func IsWorkflowAlreadyStarted(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyStarted)
}

// IsConnectionFailed reports whether err is in the connection-failure
// category.
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// =============================================================================
// TLS Configuration
// =============================================================================

// TLSConfig holds optional mutual-TLS settings for the Temporal
// connection. All certificate files are PEM encoded.
type TLSConfig struct {
	Enabled    bool
	CertPath   string
	KeyPath    string
	CACertPath string
	// ServerName overrides the name expected during certificate
	// verification.
	ServerName string
	// InsecureSkipVerify disables verification. Development only.
	InsecureSkipVerify bool
}

func (t *TLSConfig) buildTLSConfig() (*tls.Config, error) {
	if !t.Enabled {
		return nil, nil
	}

	tc := &tls.Config{
		InsecureSkipVerify: t.InsecureSkipVerify,
		ServerName:         t.ServerName,
		MinVersion:         tls.VersionTLS12,
	}

	if t.CertPath != "" && t.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(t.CertPath, t.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	if t.CACertPath != "" {
		pem, err := os.ReadFile(t.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tc.RootCAs = pool
	}

	return tc, nil
}

// =============================================================================
// Client Configuration
// =============================================================================

// ClientConfig describes how to reach the Temporal server.
type ClientConfig struct {
	// HostPort is the server address, e.g. "localhost:7233".
	HostPort string
	// Namespace scopes all workflow operations.
	Namespace string
	// TaskQueue is the default queue for started workflows.
	TaskQueue string
	// TLS enables mutual TLS when set.
	TLS *TLSConfig
	// HealthCheckTimeout bounds CheckHealth calls. Zero means 5s.
	HealthCheckTimeout time.Duration
}

// NewClient dials the Temporal server described by cfg.
func NewClient(cfg ClientConfig) (client.Client, error) {
	opts := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tc, err := cfg.TLS.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("configure TLS: %w", err)
		}
		opts.ConnectionOptions = client.ConnectionOptions{TLS: tc}
	}

	c, err := client.Dial(opts)
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}
	return c, nil
}

// =============================================================================
// Shared Workflow Input Types
// =============================================================================

// SweepWorkflowInput contains the parameters for a retention sweep run.
// This type is defined in the temporal package (not in workflows) so that
// the server layer can construct workflow inputs without importing the
// workflows package.
type SweepWorkflowInput struct {
	// BatchSize limits how many expired retentions one run processes.
	BatchSize int
}

// =============================================================================
// Sweep Workflow Client
// =============================================================================

// SweepWorkflowClient provides methods for scheduling and managing retention
// sweep workflows.
type SweepWorkflowClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	healthCheckTimeout time.Duration
	closed             bool
}

// NewSweepWorkflowClient creates a new SweepWorkflowClient.
func NewSweepWorkflowClient(c client.Client, taskQueue string) *SweepWorkflowClient {
	return &SweepWorkflowClient{
		client:             c,
		taskQueue:          taskQueue,
		healthCheckTimeout: DefaultHealthCheckTimeout,
	}
}

// NewSweepWorkflowClientWithConfig creates a new SweepWorkflowClient with full configuration.
func NewSweepWorkflowClientWithConfig(c client.Client, cfg ClientConfig) *SweepWorkflowClient {
	healthTimeout := cfg.HealthCheckTimeout
	if healthTimeout == 0 {
		healthTimeout = DefaultHealthCheckTimeout
	}

	return &SweepWorkflowClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		healthCheckTimeout: healthTimeout,
	}
}

// Close closes the underlying Temporal client connection.
func (c *SweepWorkflowClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && !c.closed {
		c.client.Close()
		c.closed = true
	}
}

// isClosed returns whether the client has been closed. It is safe for concurrent use.
func (c *SweepWorkflowClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Health checks the connection health to the Temporal server.
func (c *SweepWorkflowClient) Health(ctx context.Context) error {
	if c.isClosed() {
		return &TemporalError{
			Op:   "Health",
			Kind: ErrClientClosed,
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	_, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{})
	if err != nil {
		return wrapTemporalError("Health", err, "", "")
	}

	return nil
}

// SweepSchedule describes the recurring sweep to register.
type SweepSchedule struct {
	// CronSchedule is the Temporal cron expression (e.g., "@every 24h").
	CronSchedule string

	// StartDelay postpones the first run after registration so the sweep
	// does not compete with application warm-up.
	StartDelay time.Duration

	// BatchSize limits how many expired retentions each run processes.
	BatchSize int
}

// EnsureSweepSchedule registers the recurring retention sweep as a cron
// workflow with a fixed workflow ID. Calling it when the schedule is already
// registered is a no-op: the already-started error is swallowed so every
// worker replica can call it on startup.
//
// The workflow function must be registered with the worker separately.
func (c *SweepWorkflowClient) EnsureSweepSchedule(ctx context.Context, sched SweepSchedule, workflowFunc interface{}) (workflowID string, err error) {
	if c.isClosed() {
		return "", &TemporalError{
			Op:   "EnsureSweepSchedule",
			Kind: ErrClientClosed,
		}
	}

	workflowID = SweepScheduleWorkflowID
	options := client.StartWorkflowOptions{
		ID:                 workflowID,
		TaskQueue:          c.taskQueue,
		CronSchedule:       sched.CronSchedule,
		StartDelay:         sched.StartDelay,
		WorkflowRunTimeout: DefaultSweepRunTimeout,
	}

	input := SweepWorkflowInput{BatchSize: sched.BatchSize}
	_, err = c.client.ExecuteWorkflow(ctx, options, workflowFunc, input)
	if err != nil {
		wrapped := wrapTemporalError("EnsureSweepSchedule", err, workflowID, "")
		if IsWorkflowAlreadyStarted(wrapped) {
			return workflowID, nil
		}
		return "", wrapped
	}

	return workflowID, nil
}

// TriggerSweep starts a one-off sweep run outside the cron schedule, for
// operator use. The workflow ID embeds the run's start time so repeated
// triggers do not collide.
func (c *SweepWorkflowClient) TriggerSweep(ctx context.Context, input SweepWorkflowInput, workflowFunc interface{}) (workflowID, runID string, err error) {
	if c.isClosed() {
		return "", "", &TemporalError{
			Op:   "TriggerSweep",
			Kind: ErrClientClosed,
		}
	}

	workflowID = fmt.Sprintf("%s-%d", ManualSweepWorkflowIDPrefix, time.Now().UTC().UnixNano())
	options := client.StartWorkflowOptions{
		ID:                 workflowID,
		TaskQueue:          c.taskQueue,
		WorkflowRunTimeout: DefaultSweepRunTimeout,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, workflowFunc, input)
	if err != nil {
		return "", "", wrapTemporalError("TriggerSweep", err, workflowID, "")
	}

	return workflowID, run.GetRunID(), nil
}

// CancelWorkflow cancels a running workflow.
func (c *SweepWorkflowClient) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	if c.isClosed() {
		return &TemporalError{
			Op:         "CancelWorkflow",
			Kind:       ErrClientClosed,
			WorkflowID: workflowID,
			RunID:      runID,
		}
	}

	err := c.client.CancelWorkflow(ctx, workflowID, runID)
	if err != nil {
		return wrapTemporalError("CancelWorkflow", err, workflowID, runID)
	}
	return nil
}

// GetWorkflowResult waits for a workflow to complete and returns the result.
func (c *SweepWorkflowClient) GetWorkflowResult(ctx context.Context, workflowID, runID string, result interface{}) error {
	if c.isClosed() {
		return &TemporalError{
			Op:         "GetWorkflowResult",
			Kind:       ErrClientClosed,
			WorkflowID: workflowID,
			RunID:      runID,
		}
	}

	run := c.client.GetWorkflow(ctx, workflowID, runID)

	if err := run.Get(ctx, result); err != nil {
		return wrapTemporalError("GetWorkflowResult", err, workflowID, runID)
	}

	return nil
}

// WorkflowDescription contains information about a workflow execution.
type WorkflowDescription struct {
	// WorkflowID is the workflow identifier.
	WorkflowID string
	// RunID is the workflow run identifier.
	RunID string
	// Status is the workflow execution status.
	Status string
	// StartTime is when the workflow started.
	StartTime time.Time
	// CloseTime is when the workflow completed (nil if still running).
	CloseTime *time.Time
}

// DescribeWorkflow returns information about a workflow execution.
func (c *SweepWorkflowClient) DescribeWorkflow(ctx context.Context, workflowID, runID string) (*WorkflowDescription, error) {
	if c.isClosed() {
		return nil, &TemporalError{
			Op:         "DescribeWorkflow",
			Kind:       ErrClientClosed,
			WorkflowID: workflowID,
			RunID:      runID,
		}
	}

	resp, err := c.client.DescribeWorkflowExecution(ctx, workflowID, runID)
	if err != nil {
		return nil, wrapTemporalError("DescribeWorkflow", err, workflowID, runID)
	}

	desc := &WorkflowDescription{
		WorkflowID: workflowID,
		RunID:      resp.WorkflowExecutionInfo.Execution.RunId,
		Status:     resp.WorkflowExecutionInfo.Status.String(),
		StartTime:  resp.WorkflowExecutionInfo.StartTime.AsTime(),
	}

	if resp.WorkflowExecutionInfo.CloseTime != nil {
		closeTime := resp.WorkflowExecutionInfo.CloseTime.AsTime()
		desc.CloseTime = &closeTime
	}

	return desc, nil
}

// Client returns the underlying Temporal client for advanced operations.
func (c *SweepWorkflowClient) Client() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue name.
func (c *SweepWorkflowClient) TaskQueue() string {
	return c.taskQueue
}
