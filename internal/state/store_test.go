package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testParams() eks.CreateParams {
	return eks.CreateParams{
		Name:    "demo",
		RoleARN: "eks-role",
		Version: "1.30",
		ResourcesVpcConfig: eks.VpcConfig{
			SubnetIDs: []string{"subnet-a", "subnet-b"},
		},
		Tags: map[string]string{"team": "core"},
	}
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Instance{
		ID:             "inst-1",
		DeploymentID:   "dep-1",
		ClusterName:    "demo",
		Region:         "eu-central-1",
		ResourceConfig: testParams(),
	}))

	got, err := s.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, StateUncreated, got.State)
	assert.Equal(t, "demo", got.ClusterName)
	assert.Equal(t, "dep-1", got.DeploymentID)
	assert.Equal(t, testParams(), got.ResourceConfig)
	assert.Nil(t, got.Kubeconf)
	assert.Nil(t, got.Site)
	assert.NotNil(t, got.Labels)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPut_RequiresID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Put(context.Background(), Instance{}))
}

func TestTransition_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Instance{ID: "i", ClusterName: "demo"}))

	for _, to := range []State{StateCreating, StateActive, StateDeleting, StateDeleted} {
		inst, err := s.Transition(ctx, "i", to)
		require.NoError(t, err, "transition to %s", to)
		assert.Equal(t, to, inst.State)
	}
}

func TestTransition_Invalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Instance{ID: "i", ClusterName: "demo"}))

	_, err := s.Transition(ctx, "i", StateActive)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := s.Get(ctx, "i")
	require.NoError(t, err)
	assert.Equal(t, StateUncreated, got.State, "rejected transition must not be persisted")
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUncreated, StateCreating, true},
		{StateCreating, StateFailed, true},
		{StateDeleting, StateFailed, true},
		{StateFailed, StateDeleting, true},
		{StateActive, StateActive, true},
		{StateUncreated, StateActive, false},
		{StateUncreated, StateDeleting, true},
		{StateFailed, StateActive, false},
		{StateCreating, StateDeleting, true},
		{StateActive, StateCreating, false},
		{StateDeleted, StateActive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUpdate_PersistsKubeconfAndResource(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Instance{ID: "i", ClusterName: "demo"}))

	kc, err := eks.NewKubeConfig("https://EXAMPLE", "Zm9v", "k8s-aws-v1.abc").Map()
	require.NoError(t, err)

	_, err = s.Update(ctx, "i", func(inst *Instance) error {
		inst.Kubeconf = kc
		inst.Resource = map[string]any{"status": "ACTIVE"}
		inst.KubeconfigObject = "s3://b/k"
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "i")
	require.NoError(t, err)
	assert.Equal(t, "aws", got.Kubeconf["current-context"])
	assert.Equal(t, "ACTIVE", got.Resource["status"])
	assert.Equal(t, "s3://b/k", got.KubeconfigObject)

	_, err = s.Update(ctx, "i", func(inst *Instance) error {
		inst.Kubeconf = nil
		return nil
	})
	require.NoError(t, err)
	got, err = s.Get(ctx, "i")
	require.NoError(t, err)
	assert.Nil(t, got.Kubeconf)
}

func TestUpdate_CallbackErrorAborts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Instance{ID: "i", ClusterName: "demo"}))

	_, err := s.Update(ctx, "i", func(inst *Instance) error {
		inst.ARN = "changed"
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := s.Get(ctx, "i")
	require.NoError(t, err)
	assert.Empty(t, got.ARN)
}

func TestAddLabelsAndAssignSite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Instance{ID: "i", ClusterName: "demo", Labels: map[string]string{"keep": "me"}}))

	require.NoError(t, s.AddLabels(ctx, "i", map[string]string{"csys-env-type": "eks", "keep": "updated"}))
	require.NoError(t, s.AssignSite(ctx, "i", Site{Name: "Frankfurt", Coordinates: "50,8"}))

	got, err := s.Get(ctx, "i")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"csys-env-type": "eks", "keep": "updated"}, got.Labels)
	require.NotNil(t, got.Site)
	assert.Equal(t, "Frankfurt", got.Site.Name)

	assert.ErrorIs(t, s.AddLabels(ctx, "missing", nil), ErrNotFound)
}

func TestListAndFindByCluster(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	require.NoError(t, s.Put(ctx, Instance{ID: "b", ClusterName: "demo"}))
	require.NoError(t, s.Put(ctx, Instance{ID: "a", ClusterName: "other"}))
	require.NoError(t, s.Put(ctx, Instance{ID: "c", ClusterName: "demo"}))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	inst, err := s.FindByCluster(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "c", inst.ID)

	_, err = s.FindByCluster(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, Instance{ID: "i", ClusterName: "demo"}))

	require.NoError(t, s.Delete(ctx, "i"))
	assert.ErrorIs(t, s.Delete(ctx, "i"), ErrNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), Instance{ID: "i", ClusterName: "demo"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "i")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.ClusterName)
}
