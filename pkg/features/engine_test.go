package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/archonhq/archon/pkg/auth"
	"github.com/archonhq/archon/pkg/locks"
	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/nodes"
	"github.com/archonhq/archon/pkg/registry"
	"github.com/archonhq/archon/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	engine     *Engine
	repository *MemoryRepository
	registry   *registry.Registry
	nodes      nodes.Service
}

func newEngineFixture(t *testing.T, opts ...func(*Config)) *engineFixture {
	t.Helper()

	repository := NewMemoryRepository()
	reg := registry.NewRegistry(nil)
	nodeService := nodes.NewMemoryService(locks.NewMemoryStore())

	cfg := Config{
		Repository: repository,
		Registry:   reg,
		Nodes:      nodeService,
		Authorizer: auth.NewGroupAuthorizer(nil),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &engineFixture{
		engine:     NewEngine(cfg),
		repository: repository,
		registry:   reg,
		nodes:      nodeService,
	}
}

func (f *engineFixture) addFeature(t *testing.T, feature models.Feature, body registry.RunnableFunc) {
	t.Helper()

	require.NoError(t, f.repository.Add(t.Context(), feature))

	if body != nil {
		f.registry.RegisterFunc(feature.ID, body)
	}
}

func (f *engineFixture) addNode(t *testing.T, node *models.Node) *models.Node {
	t.Helper()

	require.NoError(t, f.nodes.Create(t.Context(), node))

	return node
}

func alice() auth.Identity {
	return auth.Identity{Email: "alice@example.com", Groups: []string{"reviewers"}}
}

func TestEngine_RunAction_SingleNode(t *testing.T) {
	f := newEngineFixture(t)
	node := f.addNode(t, testutil.CreateTestNode())

	f.addFeature(t, testutil.CreateTestFeature("stamp"), func(_ context.Context, runCtx registry.RunContext) (any, error) {
		return runCtx.Node.UUID, nil
	})

	result, err := f.engine.RunAction(t.Context(), alice(), "stamp", []string{node.UUID}, nil)
	require.NoError(t, err)

	assert.Equal(t, node.UUID, result.Results[node.UUID])
	assert.Empty(t, result.NodeErrors)
}

func TestEngine_RunAction_NoTargetNodes(t *testing.T) {
	f := newEngineFixture(t)

	f.addFeature(t, testutil.CreateTestFeature("ping"), func(_ context.Context, runCtx registry.RunContext) (any, error) {
		assert.Nil(t, runCtx.Node)

		return "pong", nil
	})

	result, err := f.engine.RunAction(t.Context(), alice(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", result.Value)
}

func TestEngine_RunAction_FeatureNotFound(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.RunAction(t.Context(), alice(), "missing", nil, nil)
	assert.True(t, IsFeatureNotFound(err))
}

func TestEngine_RunAction_NotExposed(t *testing.T) {
	testCases := []struct {
		name     string
		override func(*models.Feature)
	}{
		{
			name:     "action route disabled",
			override: func(f *models.Feature) { f.ExposeAction = false },
		},
		{
			name:     "manual runs disabled",
			override: func(f *models.Feature) { f.RunManually = false },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t)
			f.addFeature(t, testutil.CreateTestFeature("gated", tc.override), func(_ context.Context, _ registry.RunContext) (any, error) {
				return nil, nil
			})

			_, err := f.engine.RunAction(t.Context(), alice(), "gated", nil, nil)
			assert.ErrorIs(t, err, ErrFeatureNotExposed)
		})
	}
}

func TestEngine_RunAction_GroupAuthorization(t *testing.T) {
	f := newEngineFixture(t)
	f.addFeature(t, testutil.CreateTestFeature("restricted", testutil.WithGroupsAllowed("legal")), func(_ context.Context, _ registry.RunContext) (any, error) {
		return "ok", nil
	})

	_, err := f.engine.RunAction(t.Context(), alice(), "restricted", nil, nil)
	assert.True(t, IsPermissionDenied(err))

	// A member of an allowed group passes.
	legal := auth.Identity{Email: "bob@example.com", Groups: []string{"legal"}}
	result, err := f.engine.RunAction(t.Context(), legal, "restricted", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Value)

	// Admins bypass the group restriction entirely.
	admin := auth.Identity{Email: "ops@example.com", Groups: []string{auth.AdminGroup}}
	_, err = f.engine.RunAction(t.Context(), admin, "restricted", nil, nil)
	assert.NoError(t, err)
}

func TestEngine_RunAction_ParameterValidation(t *testing.T) {
	f := newEngineFixture(t)

	var seen map[string]any

	f.addFeature(t, testutil.CreateTestFeature("convert", testutil.WithParameters(
		models.FeatureParameter{Name: "format", Type: models.ParameterString, Required: true},
		models.FeatureParameter{Name: "quality", Type: models.ParameterNumber, DefaultValue: 80},
	)), func(_ context.Context, runCtx registry.RunContext) (any, error) {
		seen = runCtx.Params

		return nil, nil
	})

	_, err := f.engine.RunAction(t.Context(), alice(), "convert", nil, nil)
	assert.True(t, IsInvalidParameters(err), "missing required parameter must be rejected")

	_, err = f.engine.RunAction(t.Context(), alice(), "convert", nil, map[string]any{"format": 12})
	assert.True(t, IsInvalidParameters(err), "type mismatch must be rejected")

	_, err = f.engine.RunAction(t.Context(), alice(), "convert", nil, map[string]any{"format": "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "pdf", seen["format"])
	assert.EqualValues(t, 80, seen["quality"], "declared default must be applied")
}

func TestEngine_RunAction_PerNodeErrors(t *testing.T) {
	f := newEngineFixture(t)

	pdf := f.addNode(t, testutil.CreateTestNode())
	image := f.addNode(t, testutil.CreateTestNode(testutil.WithMimetype("image/png")))

	f.addFeature(t, testutil.CreateTestFeature("pdf-only", testutil.WithFilters(
		models.NodeFilter{Field: "mimetype", Operator: "==", Value: "application/pdf"},
	)), func(_ context.Context, runCtx registry.RunContext) (any, error) {
		if runCtx.Node.UUID == pdf.UUID {
			return "done", nil
		}

		return nil, errors.New("boom")
	})

	result, err := f.engine.RunAction(t.Context(), alice(), "pdf-only", []string{pdf.UUID, image.UUID, "ghost"}, nil)
	require.NoError(t, err, "per-node failures never fail the batch")

	assert.Equal(t, "done", result.Results[pdf.UUID])
	assert.Contains(t, result.NodeErrors[image.UUID], ErrFilterMismatch.Error())
	assert.NotEmpty(t, result.NodeErrors["ghost"])
}

func TestEngine_RunAction_BodyErrorWrapped(t *testing.T) {
	f := newEngineFixture(t)
	cause := errors.New("body exploded")

	f.addFeature(t, testutil.CreateTestFeature("faulty"), func(_ context.Context, _ registry.RunContext) (any, error) {
		return nil, cause
	})

	_, err := f.engine.RunAction(t.Context(), alice(), "faulty", nil, nil)
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "faulty", execErr.FeatureID)
	assert.ErrorIs(t, err, cause)
}

func TestEngine_RunAction_Timeout(t *testing.T) {
	f := newEngineFixture(t, func(cfg *Config) {
		cfg.Timeout = 20 * time.Millisecond
	})

	f.addFeature(t, testutil.CreateTestFeature("sleeper"), func(ctx context.Context, _ registry.RunContext) (any, error) {
		select {
		case <-time.After(time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	_, err := f.engine.RunAction(t.Context(), alice(), "sleeper", nil, nil)
	assert.True(t, IsTimeout(err))
}

func TestEngine_RunAction_RunAsImpersonation(t *testing.T) {
	f := newEngineFixture(t)

	f.addFeature(t, testutil.CreateTestFeature("archiver", func(feature *models.Feature) {
		feature.RunAs = "archiver@system"
	}), func(_ context.Context, runCtx registry.RunContext) (any, error) {
		return runCtx.Identity.Email, nil
	})

	result, err := f.engine.RunAction(t.Context(), alice(), "archiver", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "archiver@system", result.Value)
}

func TestEngine_RunAITool_RestrictedSurface(t *testing.T) {
	f := newEngineFixture(t)
	node := f.addNode(t, testutil.CreateTestNode())

	f.addFeature(t, testutil.CreateTestFeature("summarize", func(feature *models.Feature) {
		feature.ExposeAITool = true
	}), func(ctx context.Context, runCtx registry.RunContext) (any, error) {
		assert.Nil(t, runCtx.Writer, "AI tool route must not hand out the writer")

		got, err := runCtx.Nodes.Get(ctx, node.UUID)
		if err != nil {
			return nil, err
		}

		return got.Title, nil
	})

	value, err := f.engine.RunAITool(t.Context(), alice(), "summarize", nil)
	require.NoError(t, err)
	assert.Equal(t, node.Title, value)
}

func TestEngine_RunAITool_NotExposed(t *testing.T) {
	f := newEngineFixture(t)
	f.addFeature(t, testutil.CreateTestFeature("manual-only"), func(_ context.Context, _ registry.RunContext) (any, error) {
		return nil, nil
	})

	_, err := f.engine.RunAITool(t.Context(), alice(), "manual-only", nil)
	assert.ErrorIs(t, err, ErrFeatureNotExposed)
}

func TestEngine_RunExtension_FileReturn(t *testing.T) {
	f := newEngineFixture(t)

	f.addFeature(t, testutil.CreateTestFeature("render", func(feature *models.Feature) {
		feature.ExposeExtension = true
		feature.ReturnType = "file"
		feature.ReturnContentType = "application/pdf"
	}), func(_ context.Context, runCtx registry.RunContext) (any, error) {
		assert.Equal(t, []byte(`{"page":1}`), runCtx.Payload)

		return []byte("%PDF-1.7"), nil
	})

	response, err := f.engine.RunExtension(t.Context(), alice(), "render", []byte(`{"page":1}`))
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", response.ContentType)
	assert.Equal(t, []byte("%PDF-1.7"), response.Raw)
	assert.Nil(t, response.Value)
}

func TestEngine_RunExtension_StructuredReturn(t *testing.T) {
	f := newEngineFixture(t)

	f.addFeature(t, testutil.CreateTestFeature("lookup", func(feature *models.Feature) {
		feature.ExposeExtension = true
	}), func(_ context.Context, _ registry.RunContext) (any, error) {
		return map[string]any{"hits": 3}, nil
	})

	response, err := f.engine.RunExtension(t.Context(), alice(), "lookup", nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json", response.ContentType)
	assert.Equal(t, map[string]any{"hits": 3}, response.Value)
}

func TestEngine_ExecuteHook_SkipsManualGating(t *testing.T) {
	f := newEngineFixture(t)
	node := testutil.CreateTestNode()

	// Not exposed anywhere and restricted to a group the caller lacks: hooks
	// run regardless, the transition already gated the caller.
	f.addFeature(t, testutil.CreateTestFeature("on-approve", func(feature *models.Feature) {
		feature.ExposeAction = false
		feature.RunManually = false
		feature.GroupsAllowed = []string{"legal"}
	}), func(_ context.Context, runCtx registry.RunContext) (any, error) {
		return runCtx.Node.Title, nil
	})

	value, err := f.engine.ExecuteHook(t.Context(), alice(), "on-approve", node)
	require.NoError(t, err)
	assert.Equal(t, node.Title, value)
}

func TestEngine_ExecuteHook_PreservesErrorKind(t *testing.T) {
	f := newEngineFixture(t)
	cause := errors.New("quota exceeded")

	f.addFeature(t, testutil.CreateTestFeature("on-enter"), func(_ context.Context, _ registry.RunContext) (any, error) {
		return nil, cause
	})

	_, err := f.engine.ExecuteHook(t.Context(), alice(), "on-enter", testutil.CreateTestNode())
	assert.ErrorIs(t, err, cause)
}

func TestEngine_DispatchAutomaticTriggers_FilterGating(t *testing.T) {
	f := newEngineFixture(t)
	node := f.addNode(t, testutil.CreateTestNode())

	var ran []string

	record := func(id string) registry.RunnableFunc {
		return func(_ context.Context, _ registry.RunContext) (any, error) {
			ran = append(ran, id)

			return nil, nil
		}
	}

	f.addFeature(t, testutil.CreateTestFeature("f1", func(feature *models.Feature) {
		feature.RunOnCreates = true
		feature.Filters = []models.NodeFilter{{Field: "mimetype", Operator: "==", Value: "application/pdf"}}
	}), record("f1"))

	f.addFeature(t, testutil.CreateTestFeature("f2", func(feature *models.Feature) {
		feature.RunOnCreates = true
	}), record("f2"))

	f.addFeature(t, testutil.CreateTestFeature("f3", func(feature *models.Feature) {
		feature.RunOnCreates = true
		feature.Filters = []models.NodeFilter{{Field: "mimetype", Operator: "==", Value: "image/png"}}
	}), record("f3"))

	f.addFeature(t, testutil.CreateTestFeature("f4", func(feature *models.Feature) {
		feature.RunOnDeletes = true
	}), record("f4"))

	require.NoError(t, f.engine.DispatchAutomaticTriggers(t.Context(), node, models.NodeCreated))

	assert.Equal(t, []string{"f1", "f2"}, ran, "matching features run in ascending id order")
}

func TestEngine_DispatchAutomaticTriggers_BestEffort(t *testing.T) {
	f := newEngineFixture(t)
	node := f.addNode(t, testutil.CreateTestNode())

	var ran []string

	f.addFeature(t, testutil.CreateTestFeature("a-fails", func(feature *models.Feature) {
		feature.RunOnUpdates = true
	}), func(_ context.Context, _ registry.RunContext) (any, error) {
		return nil, errors.New("boom")
	})

	f.addFeature(t, testutil.CreateTestFeature("b-runs", func(feature *models.Feature) {
		feature.RunOnUpdates = true
	}), func(_ context.Context, _ registry.RunContext) (any, error) {
		ran = append(ran, "b-runs")

		return nil, nil
	})

	require.NoError(t, f.engine.DispatchAutomaticTriggers(t.Context(), node, models.NodeUpdated))
	assert.Equal(t, []string{"b-runs"}, ran, "a failing trigger never aborts the remaining ones")
}

func TestEngine_DispatchFolderHooks_SingleLevel(t *testing.T) {
	f := newEngineFixture(t)

	grandparent := f.addNode(t, testutil.CreateTestNode(
		testutil.WithUUID("grandparent"),
		testutil.WithFolder(&models.FolderAttributes{OnCreateFeatures: []string{"upper"}}),
	))
	parent := f.addNode(t, testutil.CreateTestNode(
		testutil.WithUUID("parent"),
		testutil.WithParent(grandparent.UUID),
		testutil.WithFolder(&models.FolderAttributes{OnCreateFeatures: []string{"ingest"}}),
	))
	child := f.addNode(t, testutil.CreateTestNode(testutil.WithParent(parent.UUID)))

	var ran []string

	for _, id := range []string{"ingest", "upper"} {
		f.addFeature(t, testutil.CreateTestFeature(id), func(_ context.Context, runCtx registry.RunContext) (any, error) {
			ran = append(ran, runCtx.Node.UUID)

			return nil, nil
		})
	}

	require.NoError(t, f.engine.DispatchFolderHooks(t.Context(), child, models.NodeCreated))

	assert.Equal(t, []string{child.UUID}, ran, "hooks walk one parent level, no recursive cascading")
}

func TestEngine_DispatchFolderHooks_NoParent(t *testing.T) {
	f := newEngineFixture(t)

	assert.NoError(t, f.engine.DispatchFolderHooks(t.Context(), testutil.CreateTestNode(), models.NodeCreated))
}

func TestEngine_RunScheduled_MatchingNodes(t *testing.T) {
	f := newEngineFixture(t)

	pdf := f.addNode(t, testutil.CreateTestNode())
	f.addNode(t, testutil.CreateTestNode(testutil.WithMimetype("image/png")))

	var ran []string

	feature := testutil.CreateTestFeature("nightly", testutil.WithFilters(
		models.NodeFilter{Field: "mimetype", Operator: "==", Value: "application/pdf"},
	))
	feature.RunOnSchedule = "0 3 * * *"

	f.addFeature(t, feature, func(_ context.Context, runCtx registry.RunContext) (any, error) {
		ran = append(ran, runCtx.Node.UUID)

		return nil, nil
	})

	require.NoError(t, f.engine.RunScheduled(t.Context(), feature))
	assert.Equal(t, []string{pdf.UUID}, ran)
}
