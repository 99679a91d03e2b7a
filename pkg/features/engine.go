package features

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/archonhq/archon/pkg/auth"
	"github.com/archonhq/archon/pkg/eventbus"
	"github.com/archonhq/archon/pkg/events"
	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/nodes"
	"github.com/archonhq/archon/pkg/registry"
)

const defaultTimeout = 30 * time.Second

// Config carries the collaborators of the features engine.
type Config struct {
	Logger     *slog.Logger
	Repository Repository
	Registry   *registry.Registry
	Nodes      nodes.Service
	Authorizer auth.Authorizer
	Content    ContentAccessor         // optional
	EventBus   eventbus.EventPublisher // optional, notification only
	Timeout    time.Duration           // per-execution deadline, defaults to 30s
}

// Engine resolves a feature by id or trigger context, authorizes the caller,
// executes the body with a bounded capability surface and normalizes the
// outcome.
type Engine struct {
	logger     *slog.Logger
	repository Repository
	registry   *registry.Registry
	nodes      nodes.Service
	authorizer auth.Authorizer
	content    ContentAccessor
	eventBus   eventbus.EventPublisher
	timeout    time.Duration
}

func NewEngine(cfg Config) *Engine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		logger:     logger.With(slog.String("module", "features_engine")),
		repository: cfg.Repository,
		registry:   cfg.Registry,
		nodes:      cfg.Nodes,
		authorizer: cfg.Authorizer,
		content:    cfg.Content,
		eventBus:   cfg.EventBus,
		timeout:    timeout,
	}
}

// ActionResult is the normalized outcome of a manual action run. Per-node
// failures on explicitly targeted nodes are reportable entries here, not a
// batch failure.
type ActionResult struct {
	Value      any               `json:"value,omitempty"`
	Results    map[string]any    `json:"results,omitempty"`
	NodeErrors map[string]string `json:"node_errors,omitempty"`
}

// ExtensionResponse is the outcome of an extension run. File return types
// stream raw bytes; every other return type is structured data.
type ExtensionResponse struct {
	ContentType string `json:"content_type"`
	Raw         []byte `json:"raw,omitempty"`
	Value       any    `json:"value,omitempty"`
}

// RunAction executes a feature manually against zero or more target nodes.
func (e *Engine) RunAction(ctx context.Context, identity auth.Identity, featureID string, nodeUUIDs []string, params map[string]any) (*ActionResult, error) {
	feature, err := e.repository.GetByID(ctx, featureID)
	if err != nil {
		return nil, err
	}

	if !feature.ExposeAction || !feature.RunManually {
		return nil, ErrFeatureNotExposed
	}

	if err := e.authorize(identity, feature); err != nil {
		return nil, err
	}

	merged, err := validateParams(feature, params)
	if err != nil {
		return nil, err
	}

	runnable, err := e.registry.CreateRunnable(feature)
	if err != nil {
		return nil, &ExecutionError{FeatureID: feature.ID, Err: err}
	}

	effective := e.effectiveIdentity(identity, feature)
	facade := &nodeFacade{identity: effective, service: e.nodes, content: e.content}

	result := &ActionResult{
		Results:    make(map[string]any),
		NodeErrors: make(map[string]string),
	}

	started := time.Now()

	if len(nodeUUIDs) == 0 {
		value, err := e.execute(ctx, runnable, registry.RunContext{
			Identity: effective,
			Params:   merged,
			Nodes:    facade,
			Writer:   facade,
			Logger:   e.logger.With(slog.String("feature_id", feature.ID)),
		})
		if err != nil {
			e.publishFailure(ctx, identity, feature, "action", err)

			return nil, e.asExecutionError(feature.ID, err)
		}

		result.Value = value
		e.publishSuccess(ctx, identity, feature, "action", nodeUUIDs, time.Since(started))

		return result, nil
	}

	for _, nodeUUID := range nodeUUIDs {
		node, err := e.nodes.Get(ctx, nodeUUID)
		if err != nil {
			result.NodeErrors[nodeUUID] = err.Error()

			continue
		}

		if !models.MatchesFilters(node, feature.Filters) {
			result.NodeErrors[nodeUUID] = ErrFilterMismatch.Error()

			continue
		}

		value, err := e.execute(ctx, runnable, registry.RunContext{
			Identity: effective,
			Params:   merged,
			Node:     node,
			Nodes:    facade,
			Writer:   facade,
			Logger:   e.logger.With(slog.String("feature_id", feature.ID), slog.String("node_uuid", nodeUUID)),
		})
		if err != nil {
			result.NodeErrors[nodeUUID] = err.Error()

			e.publishFailure(ctx, identity, feature, "action", err)

			continue
		}

		result.Results[nodeUUID] = value
	}

	e.publishSuccess(ctx, identity, feature, "action", nodeUUIDs, time.Since(started))

	return result, nil
}

// RunAITool executes a feature through the AI tool route with the restricted
// capability set: find, get, export and ocr.
func (e *Engine) RunAITool(ctx context.Context, identity auth.Identity, featureID string, params map[string]any) (any, error) {
	feature, err := e.repository.GetByID(ctx, featureID)
	if err != nil {
		return nil, err
	}

	if !feature.ExposeAITool {
		return nil, ErrFeatureNotExposed
	}

	if err := e.authorize(identity, feature); err != nil {
		return nil, err
	}

	merged, err := validateParams(feature, params)
	if err != nil {
		return nil, err
	}

	runnable, err := e.registry.CreateRunnable(feature)
	if err != nil {
		return nil, &ExecutionError{FeatureID: feature.ID, Err: err}
	}

	effective := e.effectiveIdentity(identity, feature)
	facade := &nodeFacade{identity: effective, service: e.nodes, content: e.content}

	started := time.Now()

	value, err := e.execute(ctx, runnable, registry.RunContext{
		Identity: effective,
		Params:   merged,
		Nodes:    &restrictedFacade{inner: facade},
		Logger:   e.logger.With(slog.String("feature_id", feature.ID)),
	})
	if err != nil {
		e.publishFailure(ctx, identity, feature, "ai-tool", err)

		return nil, e.asExecutionError(feature.ID, err)
	}

	e.publishSuccess(ctx, identity, feature, "ai-tool", nil, time.Since(started))

	return value, nil
}

// RunExtension executes a feature through the extension route with a raw
// request payload.
func (e *Engine) RunExtension(ctx context.Context, identity auth.Identity, featureID string, payload []byte) (*ExtensionResponse, error) {
	feature, err := e.repository.GetByID(ctx, featureID)
	if err != nil {
		return nil, err
	}

	if !feature.ExposeExtension {
		return nil, ErrFeatureNotExposed
	}

	if err := e.authorize(identity, feature); err != nil {
		return nil, err
	}

	runnable, err := e.registry.CreateRunnable(feature)
	if err != nil {
		return nil, &ExecutionError{FeatureID: feature.ID, Err: err}
	}

	effective := e.effectiveIdentity(identity, feature)
	facade := &nodeFacade{identity: effective, service: e.nodes, content: e.content}

	started := time.Now()

	value, err := e.execute(ctx, runnable, registry.RunContext{
		Identity: effective,
		Payload:  payload,
		Nodes:    facade,
		Writer:   facade,
		Logger:   e.logger.With(slog.String("feature_id", feature.ID)),
	})
	if err != nil {
		e.publishFailure(ctx, identity, feature, "extension", err)

		return nil, e.asExecutionError(feature.ID, err)
	}

	e.publishSuccess(ctx, identity, feature, "extension", nil, time.Since(started))

	return extensionResponse(feature, value), nil
}

// ExecuteHook runs a feature as a workflow transition hook. Unlike the
// manual route, hooks skip the run-manually and group checks: the transition
// already gated the caller. The body's error comes back kind-preserved.
func (e *Engine) ExecuteHook(ctx context.Context, identity auth.Identity, featureID string, node *models.Node) (any, error) {
	feature, err := e.repository.GetByID(ctx, featureID)
	if err != nil {
		return nil, err
	}

	runnable, err := e.registry.CreateRunnable(feature)
	if err != nil {
		return nil, &ExecutionError{FeatureID: feature.ID, Err: err}
	}

	effective := e.effectiveIdentity(identity, feature)
	facade := &nodeFacade{identity: effective, service: e.nodes, content: e.content}

	value, err := e.execute(ctx, runnable, registry.RunContext{
		Identity: effective,
		Node:     node,
		Nodes:    facade,
		Writer:   facade,
		Logger:   e.logger.With(slog.String("feature_id", feature.ID), slog.String("hook", "workflow")),
	})
	if err != nil {
		return nil, e.asExecutionError(feature.ID, err)
	}

	return value, nil
}

// DispatchAutomaticTriggers runs every feature whose trigger flag matches the
// event kind and whose filters match the node. Execution is sequential in
// ascending feature-id order and best-effort: a failing trigger is logged
// and never aborts the remaining ones.
func (e *Engine) DispatchAutomaticTriggers(ctx context.Context, node *models.Node, kind models.NodeEventKind) error {
	triggered, err := e.repository.FindByTrigger(ctx, kind)
	if err != nil {
		return err
	}

	for _, feature := range triggered {
		if !models.MatchesFilters(node, feature.Filters) {
			continue
		}

		e.runTrigger(ctx, feature, node, kind)
	}

	return nil
}

// DispatchFolderHooks runs the hook features configured on the node's
// immediate governing folder. The walk is a single level up, no recursive
// cascading.
func (e *Engine) DispatchFolderHooks(ctx context.Context, node *models.Node, kind models.NodeEventKind) error {
	if node.Parent == "" {
		return nil
	}

	parent, err := e.nodes.Get(ctx, node.Parent)
	if err != nil {
		if nodes.IsNodeNotFound(err) {
			return nil
		}

		return err
	}

	for _, featureID := range parent.HookFeatures(kind) {
		feature, err := e.repository.GetByID(ctx, featureID)
		if err != nil {
			e.logger.ErrorContext(ctx, "Folder hook feature missing",
				slog.String("feature_id", featureID), slog.String("folder", parent.UUID))

			continue
		}

		if !models.MatchesFilters(node, feature.Filters) {
			continue
		}

		e.runTrigger(ctx, feature, node, kind)
	}

	return nil
}

// RunScheduled executes a scheduled feature against every node matching its
// filters, best-effort. Invoked by the cron scheduler.
func (e *Engine) RunScheduled(ctx context.Context, feature models.Feature) error {
	matched, err := e.nodes.Find(ctx, feature.Filters)
	if err != nil {
		return err
	}

	for _, node := range matched {
		e.runTrigger(ctx, feature, node, "scheduled")
	}

	return nil
}

func (e *Engine) runTrigger(ctx context.Context, feature models.Feature, node *models.Node, kind models.NodeEventKind) {
	identity := auth.Identity{Email: auth.Root}
	if feature.RunAs != "" {
		identity.Email = feature.RunAs
	}

	facade := &nodeFacade{identity: identity, service: e.nodes, content: e.content}

	params, err := validateParams(feature, nil)
	if err != nil {
		e.logger.ErrorContext(ctx, "Trigger parameters invalid",
			slog.String("feature_id", feature.ID), "error", err)

		return
	}

	runnable, err := e.registry.CreateRunnable(feature)
	if err != nil {
		e.logger.ErrorContext(ctx, "Trigger has no runnable body",
			slog.String("feature_id", feature.ID), "error", err)

		return
	}

	started := time.Now()

	_, err = e.execute(ctx, runnable, registry.RunContext{
		Identity: identity,
		Params:   params,
		Node:     node,
		Nodes:    facade,
		Writer:   facade,
		Logger:   e.logger.With(slog.String("feature_id", feature.ID), slog.String("trigger", string(kind))),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Automatic trigger failed",
			slog.String("feature_id", feature.ID), slog.String("node_uuid", node.UUID), "error", err)
		e.publishFailure(ctx, identity, feature, "trigger", err)

		return
	}

	e.publishSuccess(ctx, identity, feature, "trigger", []string{node.UUID}, time.Since(started))
}

func (e *Engine) authorize(identity auth.Identity, feature models.Feature) error {
	if len(feature.GroupsAllowed) == 0 {
		return nil
	}

	if e.authorizer.IsAdmin(identity) {
		return nil
	}

	if auth.InAnyGroup(e.authorizer, identity, feature.GroupsAllowed) {
		return nil
	}

	return ErrPermissionDenied
}

func (e *Engine) effectiveIdentity(identity auth.Identity, feature models.Feature) auth.Identity {
	if feature.RunAs == "" {
		return identity
	}

	return identity.Impersonate(feature.RunAs)
}

// execute runs the body under the engine's deadline. A hung body counts as a
// timeout; its goroutine is abandoned with a cancelled context.
func (e *Engine) execute(ctx context.Context, runnable registry.Runnable, runCtx registry.RunContext) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}

	done := make(chan outcome, 1)

	go func() {
		value, err := runnable.Execute(ctx, runCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		// A body that surfaces the engine deadline counts as a timeout too.
		if errors.Is(out.err, context.DeadlineExceeded) {
			return nil, ErrFeatureTimeout
		}

		return out.value, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrFeatureTimeout
		}

		return nil, ctx.Err()
	}
}

func (e *Engine) asExecutionError(featureID string, err error) error {
	if errors.Is(err, ErrFeatureTimeout) {
		return err
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}

	return &ExecutionError{FeatureID: featureID, Err: err}
}

func (e *Engine) publishSuccess(ctx context.Context, identity auth.Identity, feature models.Feature, route string, nodeUUIDs []string, elapsed time.Duration) {
	if e.eventBus == nil {
		return
	}

	event := events.FeatureExecuted{
		BaseEvent:  events.NewBaseEvent(events.FeatureExecutedEvent, ""),
		FeatureID:  feature.ID,
		Route:      route,
		DurationMs: elapsed.Milliseconds(),
		NodeUUIDs:  nodeUUIDs,
	}
	event.UserEmail = identity.Email
	event.Tenant = identity.Tenant

	if err := e.eventBus.Publish(ctx, feature.ID, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish feature event", "error", err)
	}
}

func (e *Engine) publishFailure(ctx context.Context, identity auth.Identity, feature models.Feature, route string, cause error) {
	if e.eventBus == nil {
		return
	}

	event := events.FeatureFailed{
		BaseEvent: events.NewBaseEvent(events.FeatureFailedEvent, ""),
		FeatureID: feature.ID,
		Route:     route,
		Error:     cause.Error(),
	}
	event.UserEmail = identity.Email
	event.Tenant = identity.Tenant

	if err := e.eventBus.Publish(ctx, feature.ID, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish feature event", "error", err)
	}
}

func extensionResponse(feature models.Feature, value any) *ExtensionResponse {
	if feature.ReturnType == "file" {
		contentType := feature.ReturnContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		raw, ok := value.([]byte)
		if !ok {
			if s, isString := value.(string); isString {
				raw = []byte(s)
			}
		}

		return &ExtensionResponse{ContentType: contentType, Raw: raw}
	}

	contentType := feature.ReturnContentType
	if contentType == "" {
		contentType = "application/json"
	}

	return &ExtensionResponse{ContentType: contentType, Value: value}
}
