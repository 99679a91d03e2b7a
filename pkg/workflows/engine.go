package workflows

import (
	"context"
	"log/slog"
	"time"

	"github.com/archonhq/archon/pkg/audit"
	"github.com/archonhq/archon/pkg/auth"
	"github.com/archonhq/archon/pkg/eventbus"
	"github.com/archonhq/archon/pkg/events"
	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/nodes"
	"github.com/archonhq/archon/pkg/persistence"
	"github.com/google/uuid"
)

// AuditCategory partitions workflow audit events within an instance stream.
// Opaque partition key, shared with readers of the stream.
const AuditCategory = "workflow"

// HookRunner executes a feature as a workflow hook. Satisfied by the
// features engine.
type HookRunner interface {
	ExecuteHook(ctx context.Context, identity auth.Identity, featureID string, node *models.Node) (any, error)
}

// Config carries the collaborators of the workflow instances engine.
type Config struct {
	Logger      *slog.Logger
	Instances   persistence.InstanceRepository
	Definitions DefinitionSource
	Features    HookRunner
	Nodes       nodes.Service
	Authorizer  auth.Authorizer
	Audit       audit.Store
	EventBus    eventbus.EventPublisher // optional, notification only
}

// Engine is the state-machine driver for workflow instances.
type Engine struct {
	logger      *slog.Logger
	instances   persistence.InstanceRepository
	definitions DefinitionSource
	features    HookRunner
	nodes       nodes.Service
	authorizer  auth.Authorizer
	audit       audit.Store
	eventBus    eventbus.EventPublisher
}

func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		logger:      logger.With(slog.String("module", "workflow_engine")),
		instances:   cfg.Instances,
		definitions: cfg.Definitions,
		features:    cfg.Features,
		nodes:       cfg.Nodes,
		authorizer:  cfg.Authorizer,
		audit:       cfg.Audit,
		eventBus:    cfg.EventBus,
	}
}

// StartWorkflow creates and starts an instance of the definition for the
// node. The node lock is the critical section: of two concurrent starts on
// one node at most one acquires the lock, the loser fails with
// ErrDuplicateInstance or ErrNodeLocked.
func (e *Engine) StartWorkflow(ctx context.Context, identity auth.Identity, definitionUUID, nodeUUID string) (*models.WorkflowInstance, error) {
	definition, err := e.definitions.GetDefinition(ctx, definitionUUID)
	if err != nil {
		return nil, err
	}

	if err := definition.Validate(); err != nil {
		return nil, err
	}

	node, err := e.nodes.Get(ctx, nodeUUID)
	if err != nil {
		return nil, err
	}

	if !models.MatchesFilters(node, definition.NodeFilters) {
		return nil, ErrNodeFilterMismatch
	}

	if existing, err := e.instances.GetByNodeUUID(ctx, nodeUUID); err == nil && existing.Running {
		return nil, ErrDuplicateInstance
	}

	now := time.Now().UTC()
	instance := &models.WorkflowInstance{
		UUID:           uuid.New().String(),
		DefinitionUUID: definitionUUID,
		NodeUUID:       nodeUUID,
		Definition:     definition.Clone(),
		CurrentState:   definition.InitialState(),
		Running:        true,
		StartedBy:      identity.Email,
		History:        make([]models.HistoryEntry, 0),
		CreatedAt:      now,
		ModifiedAt:     now,
	}

	if err := e.nodes.Lock(ctx, nodeUUID, instance.LockToken()); err != nil {
		return nil, err
	}

	if err := e.instances.Add(ctx, instance); err != nil {
		e.rollbackLock(ctx, nodeUUID, instance.LockToken())

		return nil, err
	}

	if err := e.appendAudit(ctx, identity, instance, "WorkflowStarted", map[string]any{
		"definition_uuid": definitionUUID,
		"node_uuid":       nodeUUID,
		"initial_state":   instance.CurrentState,
	}); err != nil {
		if deleteErr := e.instances.Delete(ctx, instance.UUID); deleteErr != nil {
			e.logger.ErrorContext(ctx, "Failed to roll back instance after audit failure",
				slog.String("instance_uuid", instance.UUID), "error", deleteErr)
		}

		e.rollbackLock(ctx, nodeUUID, instance.LockToken())

		return nil, err
	}

	started := events.WorkflowStarted{
		BaseEvent:      events.NewBaseEvent(events.WorkflowStartedEvent, nodeUUID),
		DefinitionUUID: definitionUUID,
		InitialState:   instance.CurrentState,
	}
	started.InstanceID = instance.UUID
	started.UserEmail = identity.Email
	started.Tenant = identity.Tenant
	e.publish(ctx, nodeUUID, started)

	return instance.Clone(), nil
}

// Transition applies a signal to a running instance. The whole step is
// all-or-nothing: hooks run against the pre-transition state and any hook
// failure leaves the instance, its history and the node lock untouched,
// surfacing the hook's error kind-preserved.
func (e *Engine) Transition(ctx context.Context, identity auth.Identity, instanceUUID, signal string) (*models.WorkflowInstance, error) {
	instance, err := e.instances.GetByUUID(ctx, instanceUUID)
	if err != nil {
		return nil, err
	}

	if !instance.Running {
		return nil, ErrWorkflowNotRunning
	}

	transition, ok := instance.Definition.TransitionFor(instance.CurrentState, signal)
	if !ok {
		return nil, ErrInvalidSignal
	}

	if len(transition.GroupsAllowed) > 0 &&
		!e.authorizer.IsAdmin(identity) &&
		!auth.InAnyGroup(e.authorizer, identity, transition.GroupsAllowed) {
		return nil, ErrPermissionDenied
	}

	node, err := e.nodes.Get(ctx, instance.NodeUUID)
	if err != nil {
		return nil, err
	}

	fromState, _ := instance.CurrentStateSpec()
	targetState := instance.Definition.States[transition.Target]

	// Hook order: onExit of the current state, transition actions, onEnter
	// of the target. Strictly sequential so earlier side effects are
	// visible to later hooks.
	hookIDs := make([]string, 0, len(fromState.OnExit)+len(transition.ActionFeatures)+len(targetState.OnEnter))
	hookIDs = append(hookIDs, fromState.OnExit...)
	hookIDs = append(hookIDs, transition.ActionFeatures...)
	hookIDs = append(hookIDs, targetState.OnEnter...)

	for _, featureID := range hookIDs {
		if _, err := e.features.ExecuteHook(ctx, identity, featureID, node); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	instance.History = append(instance.History, models.HistoryEntry{
		Signal:     signal,
		FromState:  instance.CurrentState,
		ToState:    transition.Target,
		UserEmail:  identity.Email,
		OccurredOn: now,
	})
	instance.CurrentState = transition.Target
	instance.ModifiedAt = now

	final := targetState.IsFinal
	if final {
		instance.Running = false
	}

	if err := e.instances.Update(ctx, instance); err != nil {
		return nil, err
	}

	// The lock is released only after the terminal state is durably
	// recorded, so a persistence failure never leaves an unlocked node
	// with a running instance.
	if final {
		if err := e.nodes.Unlock(ctx, instance.NodeUUID, instance.LockToken()); err != nil {
			e.logger.ErrorContext(ctx, "Failed to release node lock on final transition",
				slog.String("instance_uuid", instance.UUID), "error", err)
		}
	}

	if err := e.appendAudit(ctx, identity, instance, "WorkflowTransitioned", map[string]any{
		"signal":     signal,
		"from_state": fromStateName(instance),
		"to_state":   instance.CurrentState,
		"final":      final,
	}); err != nil {
		e.logger.ErrorContext(ctx, "Failed to append transition audit event",
			slog.String("instance_uuid", instance.UUID), "error", err)
	}

	transitioned := events.WorkflowTransitioned{
		BaseEvent: events.NewBaseEvent(events.WorkflowTransitionedEvent, instance.NodeUUID),
		Signal:    signal,
		FromState: fromStateName(instance),
		ToState:   instance.CurrentState,
		Final:     final,
	}
	transitioned.InstanceID = instance.UUID
	transitioned.UserEmail = identity.Email
	transitioned.Tenant = identity.Tenant
	e.publish(ctx, instance.NodeUUID, transitioned)

	if final {
		completed := events.WorkflowCompleted{
			BaseEvent:  events.NewBaseEvent(events.WorkflowCompletedEvent, instance.NodeUUID),
			FinalState: instance.CurrentState,
		}
		completed.InstanceID = instance.UUID
		completed.UserEmail = identity.Email
		completed.Tenant = identity.Tenant
		e.publish(ctx, instance.NodeUUID, completed)
	}

	return instance.Clone(), nil
}

// CancelWorkflow terminates a running instance without reaching a final
// state. Owner or admin only.
func (e *Engine) CancelWorkflow(ctx context.Context, identity auth.Identity, instanceUUID string) (*models.WorkflowInstance, error) {
	instance, err := e.instances.GetByUUID(ctx, instanceUUID)
	if err != nil {
		return nil, err
	}

	if instance.StartedBy != identity.Email && !e.authorizer.IsAdmin(identity) {
		return nil, ErrPermissionDenied
	}

	if instance.Cancelled {
		return nil, ErrAlreadyCancelled
	}

	if !instance.Running {
		return nil, ErrWorkflowNotRunning
	}

	fromState := instance.CurrentState

	instance.Cancelled = true
	instance.Running = false
	instance.ModifiedAt = time.Now().UTC()

	if err := e.instances.Update(ctx, instance); err != nil {
		return nil, err
	}

	if err := e.nodes.Unlock(ctx, instance.NodeUUID, instance.LockToken()); err != nil {
		e.logger.ErrorContext(ctx, "Failed to release node lock on cancel",
			slog.String("instance_uuid", instance.UUID), "error", err)
	}

	if err := e.appendAudit(ctx, identity, instance, "WorkflowCancelled", map[string]any{
		"from_state": fromState,
	}); err != nil {
		e.logger.ErrorContext(ctx, "Failed to append cancel audit event",
			slog.String("instance_uuid", instance.UUID), "error", err)
	}

	cancelled := events.WorkflowCancelled{
		BaseEvent: events.NewBaseEvent(events.WorkflowCancelledEvent, instance.NodeUUID),
		FromState: fromState,
	}
	cancelled.InstanceID = instance.UUID
	cancelled.UserEmail = identity.Email
	cancelled.Tenant = identity.Tenant
	e.publish(ctx, instance.NodeUUID, cancelled)

	return instance.Clone(), nil
}

// UpdateNode edits the governed node through the workflow-sanctioned path.
// Permitted only while the instance runs and the caller is in the current
// state's editor groups.
func (e *Engine) UpdateNode(ctx context.Context, identity auth.Identity, instanceUUID, nodeUUID string, patch models.NodePatch) (*models.Node, error) {
	if err := e.authorizeNodeEdit(ctx, identity, instanceUUID, nodeUUID); err != nil {
		return nil, err
	}

	return e.nodes.Update(ctx, nodeUUID, patch)
}

// UpdateNodeFile replaces the governed node's file content through the
// workflow-sanctioned path, under the same gating as UpdateNode.
func (e *Engine) UpdateNodeFile(ctx context.Context, identity auth.Identity, instanceUUID, nodeUUID string, file models.FileAttributes) (*models.Node, error) {
	if err := e.authorizeNodeEdit(ctx, identity, instanceUUID, nodeUUID); err != nil {
		return nil, err
	}

	return e.nodes.UpdateFile(ctx, nodeUUID, file)
}

// FindActiveInstances returns all running instances, optionally scoped to
// one definition.
func (e *Engine) FindActiveInstances(ctx context.Context, definitionUUID string) ([]*models.WorkflowInstance, error) {
	return e.instances.FindActive(ctx, definitionUUID)
}

// GetInstance returns one instance by uuid.
func (e *Engine) GetInstance(ctx context.Context, instanceUUID string) (*models.WorkflowInstance, error) {
	return e.instances.GetByUUID(ctx, instanceUUID)
}

// AuditTrail returns the ordered audit stream of an instance.
func (e *Engine) AuditTrail(ctx context.Context, instanceUUID string) ([]audit.Event, error) {
	return e.audit.GetStream(ctx, instanceUUID, AuditCategory)
}

// DeleteInstance removes a terminal instance. Administrative operation,
// distinct from cancellation.
func (e *Engine) DeleteInstance(ctx context.Context, identity auth.Identity, instanceUUID string) error {
	if !e.authorizer.IsAdmin(identity) {
		return ErrPermissionDenied
	}

	instance, err := e.instances.GetByUUID(ctx, instanceUUID)
	if err != nil {
		return err
	}

	if instance.Running {
		return ErrWorkflowStillRunning
	}

	return e.instances.Delete(ctx, instanceUUID)
}

func (e *Engine) authorizeNodeEdit(ctx context.Context, identity auth.Identity, instanceUUID, nodeUUID string) error {
	instance, err := e.instances.GetByUUID(ctx, instanceUUID)
	if err != nil {
		return err
	}

	if !instance.Running {
		return ErrWorkflowNotRunning
	}

	if instance.NodeUUID != nodeUUID {
		return ErrNodeNotGoverned
	}

	state, ok := instance.CurrentStateSpec()
	if !ok {
		return ErrInvalidSignal
	}

	if len(state.EditorGroups) == 0 {
		return nil
	}

	if e.authorizer.IsAdmin(identity) || auth.InAnyGroup(e.authorizer, identity, state.EditorGroups) {
		return nil
	}

	return ErrPermissionDenied
}

func (e *Engine) appendAudit(ctx context.Context, identity auth.Identity, instance *models.WorkflowInstance, eventType string, payload map[string]any) error {
	_, err := e.audit.Append(ctx, instance.UUID, AuditCategory, audit.Event{
		EventType: eventType,
		UserEmail: identity.Email,
		Tenant:    identity.Tenant,
		Payload:   payload,
	})

	return err
}

func (e *Engine) rollbackLock(ctx context.Context, nodeUUID, token string) {
	if err := e.nodes.Unlock(ctx, nodeUUID, token); err != nil {
		e.logger.ErrorContext(ctx, "Failed to roll back node lock",
			slog.String("node_uuid", nodeUUID), "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish workflow event", "error", err)
	}
}

func fromStateName(instance *models.WorkflowInstance) string {
	if len(instance.History) == 0 {
		return instance.CurrentState
	}

	return instance.History[len(instance.History)-1].FromState
}
