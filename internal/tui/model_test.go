package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"tasnim.dev/eks-lifecycle/internal/aws/eks"
)

type stubDescriber struct {
	cluster eks.EKSCluster
	err     error
}

func (s stubDescriber) DescribeCluster(ctx context.Context, name string) (eks.EKSCluster, error) {
	return s.cluster, s.err
}

func attempt(n int, status string) AttemptMsg {
	return AttemptMsg{
		Observation: eks.Observation{
			Cluster:     "demo",
			Target:      eks.TargetActive,
			Attempt:     n,
			MaxAttempts: 40,
			Status:      status,
			Found:       status != "",
		},
		At: time.Date(2026, 3, 1, 10, 0, n, 0, time.UTC),
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func TestView_Header(t *testing.T) {
	m := NewModel(nil, "demo", eks.TargetActive, "test-profile", "eu-central-1").WithAccount("123456789012")

	view := m.View().Content
	for _, want := range []string{"EKS Cluster Watch", "demo", "test-profile", "eu-central-1", "123456789012", "waiting for ACTIVE"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestUpdate_AttemptAppendsHistory(t *testing.T) {
	m := NewModel(nil, "demo", eks.TargetActive, "", "")

	m, _ = update(t, m, attempt(1, eks.StatusCreating))
	m, _ = update(t, m, attempt(2, eks.StatusCreating))

	if len(m.history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(m.history))
	}
	rows := m.table.Rows()
	if len(rows) != 2 || rows[1][0] != "2/40" || rows[1][2] != "CREATING" {
		t.Errorf("rows = %v", rows)
	}

	view := m.View().Content
	if !strings.Contains(view, "attempt 2/40") {
		t.Error("view should show attempt progress")
	}
}

func TestUpdate_StatusChangeRefetches(t *testing.T) {
	d := stubDescriber{cluster: eks.EKSCluster{Name: "demo", Status: eks.StatusActive}}
	m := NewModel(d, "demo", eks.TargetActive, "", "")

	m, cmd := update(t, m, attempt(1, eks.StatusCreating))
	if cmd == nil {
		t.Fatal("first observation should trigger a describe")
	}
	m, cmd = update(t, m, attempt(2, eks.StatusCreating))
	if cmd != nil {
		t.Error("unchanged status should not trigger a describe")
	}

	m, _ = update(t, m, describeMsg(t, d))
	if m.cluster == nil || m.cluster.Status != eks.StatusActive {
		t.Errorf("cluster = %+v", m.cluster)
	}
}

// describeMsg runs the describe command the model would issue.
func describeMsg(t *testing.T, d stubDescriber) tea.Msg {
	t.Helper()
	return NewModel(d, "demo", "", "", "").fetchCluster()()
}

func TestUpdate_HistoryIsBounded(t *testing.T) {
	m := NewModel(nil, "demo", eks.TargetActive, "", "")
	for i := 1; i <= maxHistory+10; i++ {
		m, _ = update(t, m, attempt(i, eks.StatusCreating))
	}
	if len(m.history) != maxHistory {
		t.Errorf("history = %d entries, want %d", len(m.history), maxHistory)
	}
	if m.history[0].Observation.Attempt != 11 {
		t.Errorf("oldest attempt = %d, want 11", m.history[0].Observation.Attempt)
	}
}

func TestView_Done(t *testing.T) {
	m := NewModel(nil, "demo", eks.TargetActive, "", "")
	m, _ = update(t, m, attempt(1, eks.StatusActive))
	m, _ = update(t, m, DoneMsg{})

	view := m.View().Content
	if !strings.Contains(view, "Reached ACTIVE") {
		t.Error("view should report the reached target")
	}
	if strings.Contains(view, "Polling") {
		t.Error("view should stop polling indicator when done")
	}
}

func TestView_WaitError(t *testing.T) {
	m := NewModel(nil, "demo", eks.TargetActive, "", "")
	m, _ = update(t, m, DoneMsg{Err: &eks.TimeoutError{Cluster: "demo", Target: eks.TargetActive, Attempts: 40, LastStatus: "CREATING"}})

	view := m.View().Content
	if !strings.Contains(view, "Error:") {
		t.Error("view should show wait error")
	}
}

func TestView_ClusterDetails(t *testing.T) {
	m := NewModel(nil, "demo", "", "", "")
	m, _ = update(t, m, clusterMsg{cluster: eks.EKSCluster{
		Name:      "demo",
		ARN:       "arn:aws:eks:eu-central-1:123456789012:cluster/demo",
		Status:    eks.StatusActive,
		Version:   "1.31",
		Endpoint:  "https://ABCDEF.eks.amazonaws.com",
		SubnetIDs: []string{"subnet-a", "subnet-b"},
	}})

	view := m.View().Content
	for _, want := range []string{"1.31", "https://ABCDEF.eks.amazonaws.com", "subnet-a, subnet-b", "ACTIVE"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestUpdate_FetchErrors(t *testing.T) {
	m := NewModel(nil, "demo", "", "", "")
	m, _ = update(t, m, clusterMsg{cluster: eks.EKSCluster{Name: "demo"}})

	m, _ = update(t, m, errMsg{err: fmt.Errorf("DescribeCluster(demo): %w", eks.ErrClusterNotFound)})
	if m.cluster != nil {
		t.Error("not-found should clear cluster details")
	}

	m, _ = update(t, m, errMsg{err: errors.New("access denied")})
	if !strings.Contains(m.View().Content, "access denied") {
		t.Error("view should show describe error")
	}
}

func TestUpdate_WindowSizeMsg(t *testing.T) {
	m := NewModel(nil, "demo", "", "", "")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	if m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", m.width, m.height)
	}
	if cols := m.table.Columns(); cols[2].Width <= 12 {
		t.Errorf("status col width = %d, want > 12 for wide terminal", cols[2].Width)
	}
}

func TestUpdate_Quit(t *testing.T) {
	m := NewModel(nil, "demo", "", "", "")
	_, cmd := m.Update(tea.KeyPressMsg{Code: 'q', Text: "q"})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
