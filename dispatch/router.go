package dispatch

import (
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/fusiond/internal/observability"
)

// Invocation states. Every invocation moves Received -> Routed and then
// either Executing or Rejected.
const (
	stateReceived  = "received"
	stateRouted    = "routed"
	stateExecuting = "executing"
	stateRejected  = "rejected"
)

// EnvGroupName carries the deployed group's platform function name into the
// runtime, used when naming the owning group in rejection errors.
const EnvGroupName = "NUCLIO_FUNCTION_NAME"

// Context accompanies a single invocation through a task handler.
type Context struct {
	InvocationID string
	GroupName    string
	Logger       zerolog.Logger

	// HTTP is the outbound-call facility handed to task code. Its transport
	// intercepts calls addressed to co-located tasks.
	HTTP *http.Client
}

// Router resolves invocations against the routing table packaged into this
// artifact.
type Router struct {
	tasks     map[string]Handler
	groupName string
	base      http.RoundTripper
}

func NewRouter(tasks map[string]Handler) *Router {
	return &Router{
		tasks:     tasks,
		groupName: os.Getenv(EnvGroupName),
	}
}

// SetBaseTransport overrides the transport used for outbound calls that are
// not resolved in-process. Nil means http.DefaultTransport.
func (r *Router) SetBaseTransport(rt http.RoundTripper) {
	r.base = rt
}

// Dispatch routes one invocation to its task handler.
//
// A missing Fusionizer-Server-Address header is a configuration error
// surfaced before any task code runs. A missing or unknown Task-Name header
// rejects the invocation without executing any handler.
func (r *Router) Dispatch(event Event) (string, error) {
	invocationID := uuid.NewString()
	logger := log.With().
		Str("group", r.groupName).
		Str("invocation_id", invocationID).
		Logger()
	logger.Debug().Str("state", stateReceived).Msg("invocation received")

	serverAddr := event.Headers.Get(HeaderServerAddress)
	if serverAddr == "" {
		observability.RecordDispatch(r.groupName, stateRejected)
		return "", missingHeaderConfig()
	}

	taskName := event.Headers.Get(HeaderTaskName)
	if taskName == "" {
		observability.RecordDispatch(r.groupName, stateRejected)
		logger.Warn().Str("state", stateRejected).Msg("missing task header")
		return "", missingHeader(HeaderTaskName)
	}
	handler, ok := r.tasks[taskName]
	if !ok {
		observability.RecordDispatch(r.groupName, stateRejected)
		logger.Warn().Str("state", stateRejected).Str("task", taskName).Msg("unknown task")
		return "", &ProtocolError{Reason: fmt.Sprintf(
			"the task %q is not handled by the fusion group %q", taskName, r.groupName)}
	}
	logger.Debug().Str("state", stateRouted).Str("task", taskName).Msg("invocation routed")

	ctx := r.newContext(invocationID, logger.With().Str("task", taskName).Logger(), serverAddr)
	logger.Debug().Str("state", stateExecuting).Str("task", taskName).Msg("invoking handler")
	result, err := handler(ctx, event)
	observability.RecordDispatch(r.groupName, outcome(err))
	return result, err
}

func (r *Router) newContext(invocationID string, logger zerolog.Logger, serverAddr string) *Context {
	ctx := &Context{
		InvocationID: invocationID,
		GroupName:    r.groupName,
		Logger:       logger,
	}
	interceptor := &Interceptor{
		Base:       r.base,
		ServerAddr: serverAddr,
		Tasks:      r.tasks,
		Ctx:        ctx,
	}
	ctx.HTTP = &http.Client{Transport: interceptor}
	return ctx
}

func missingHeaderConfig() *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(
		"no value for the %q field was provided in the header", HeaderServerAddress)}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return stateExecuting
}
