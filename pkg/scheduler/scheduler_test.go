package scheduler

import (
	"log/slog"
	"testing"

	"github.com/archonhq/archon/pkg/auth"
	"github.com/archonhq/archon/pkg/features"
	"github.com/archonhq/archon/pkg/nodes"
	"github.com/archonhq/archon/pkg/registry"
	"github.com/archonhq/archon/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*Scheduler, *features.MemoryRepository) {
	t.Helper()

	repository := features.NewMemoryRepository()
	engine := features.NewEngine(features.Config{
		Repository: repository,
		Registry:   registry.NewRegistry(nil),
		Nodes:      nodes.NewMemoryService(nil),
		Authorizer: auth.NewGroupAuthorizer(nil),
	})

	return NewScheduler(slog.Default(), repository, engine), repository
}

func TestScheduler_Start_RegistersScheduledFeatures(t *testing.T) {
	sched, repository := newTestScheduler(t)

	nightly := testutil.CreateTestFeature("nightly")
	nightly.RunOnSchedule = "0 3 * * *"
	require.NoError(t, repository.Add(t.Context(), nightly))

	hourly := testutil.CreateTestFeature("hourly")
	hourly.RunOnSchedule = "@hourly"
	require.NoError(t, repository.Add(t.Context(), hourly))

	// Features without a schedule are not cron entries.
	require.NoError(t, repository.Add(t.Context(), testutil.CreateTestFeature("manual")))

	registered, err := sched.Start(t.Context())
	require.NoError(t, err)
	defer sched.Stop()

	assert.Equal(t, 2, registered)
}

func TestScheduler_Start_SkipsInvalidExpressions(t *testing.T) {
	sched, repository := newTestScheduler(t)

	broken := testutil.CreateTestFeature("broken")
	broken.RunOnSchedule = "every full moon"
	require.NoError(t, repository.Add(t.Context(), broken))

	valid := testutil.CreateTestFeature("valid")
	valid.RunOnSchedule = "*/5 * * * *"
	require.NoError(t, repository.Add(t.Context(), valid))

	registered, err := sched.Start(t.Context())
	require.NoError(t, err)
	defer sched.Stop()

	assert.Equal(t, 1, registered, "invalid expressions are logged and skipped")
}
