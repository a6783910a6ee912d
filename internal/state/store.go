package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS instances(
    id TEXT PRIMARY KEY,
    deployment_id TEXT NOT NULL,
    cluster_name TEXT NOT NULL,
    arn TEXT NOT NULL,
    region TEXT NOT NULL,
    state TEXT NOT NULL,
    resource_config JSONB NOT NULL,
    kubeconf JSONB,
    resource JSONB,
    labels JSONB NOT NULL,
    site JSONB,
    kubeconfig_object TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
  )`

const selectColumns = `SELECT id, deployment_id, cluster_name, arn, region, state,
    resource_config, kubeconf, resource, labels, site, kubeconfig_object,
    created_at, updated_at FROM instances`

// Store is the SQLite registry of instance runtime properties.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the registry at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(row scanner) (Instance, error) {
	var (
		inst                            Instance
		state                           string
		cfgJSON, labelsJSON             []byte
		kubeconfJSON, resJSON, siteJSON []byte
		createdAt, updatedAt            int64
	)
	if err := row.Scan(&inst.ID, &inst.DeploymentID, &inst.ClusterName, &inst.ARN, &inst.Region, &state,
		&cfgJSON, &kubeconfJSON, &resJSON, &labelsJSON, &siteJSON, &inst.KubeconfigObject,
		&createdAt, &updatedAt); err != nil {
		return Instance{}, err
	}
	inst.State = State(state)
	inst.CreatedAt = time.Unix(0, createdAt).UTC()
	inst.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if err := json.Unmarshal(cfgJSON, &inst.ResourceConfig); err != nil {
		return Instance{}, fmt.Errorf("failed to decode resource_config: %w", err)
	}
	if err := json.Unmarshal(labelsJSON, &inst.Labels); err != nil {
		return Instance{}, fmt.Errorf("failed to decode labels: %w", err)
	}
	if len(kubeconfJSON) > 0 {
		if err := json.Unmarshal(kubeconfJSON, &inst.Kubeconf); err != nil {
			return Instance{}, fmt.Errorf("failed to decode kubeconf: %w", err)
		}
	}
	if len(resJSON) > 0 {
		if err := json.Unmarshal(resJSON, &inst.Resource); err != nil {
			return Instance{}, fmt.Errorf("failed to decode resource: %w", err)
		}
	}
	if len(siteJSON) > 0 {
		inst.Site = &Site{}
		if err := json.Unmarshal(siteJSON, inst.Site); err != nil {
			return Instance{}, fmt.Errorf("failed to decode site: %w", err)
		}
	}
	if inst.Labels == nil {
		inst.Labels = map[string]string{}
	}
	return inst, nil
}

// nullableJSON encodes v, storing SQL NULL for nil maps and pointers.
func nullableJSON(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	return json.Marshal(v)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) write(ctx context.Context, ex execer, inst Instance) error {
	cfgJSON, err := json.Marshal(inst.ResourceConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal resource_config: %w", err)
	}
	labels := inst.Labels
	if labels == nil {
		labels = map[string]string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	kubeconfJSON, err := nullableJSON(inst.Kubeconf, inst.Kubeconf == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal kubeconf: %w", err)
	}
	resJSON, err := nullableJSON(inst.Resource, inst.Resource == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal resource: %w", err)
	}
	siteJSON, err := nullableJSON(inst.Site, inst.Site == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal site: %w", err)
	}

	query := `INSERT INTO instances VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
    ON CONFLICT(id) DO UPDATE SET
      deployment_id=excluded.deployment_id, cluster_name=excluded.cluster_name,
      arn=excluded.arn, region=excluded.region, state=excluded.state,
      resource_config=excluded.resource_config, kubeconf=excluded.kubeconf,
      resource=excluded.resource, labels=excluded.labels, site=excluded.site,
      kubeconfig_object=excluded.kubeconfig_object, updated_at=excluded.updated_at`
	if _, err := ex.ExecContext(ctx, query,
		inst.ID, inst.DeploymentID, inst.ClusterName, inst.ARN, inst.Region, string(inst.State),
		cfgJSON, kubeconfJSON, resJSON, labelsJSON, siteJSON, inst.KubeconfigObject,
		inst.CreatedAt.UnixNano(), inst.UpdatedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to write instance %s: %w", inst.ID, err)
	}
	return nil
}

// Put inserts or replaces an instance. A new instance without a state starts
// UNCREATED.
func (s *Store) Put(ctx context.Context, inst Instance) error {
	if inst.ID == "" {
		return errors.New("instance ID is required")
	}
	now := s.now().UTC()
	if inst.State == "" {
		inst.State = StateUncreated
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	inst.UpdatedAt = now
	return s.write(ctx, s.db, inst)
}

func (s *Store) Get(ctx context.Context, id string) (Instance, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id=?`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("failed to select instance %s: %w", id, err)
	}
	return inst, nil
}

// FindByCluster returns the most recently updated instance managing clusterName.
func (s *Store) FindByCluster(ctx context.Context, clusterName string) (Instance, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE cluster_name=? ORDER BY updated_at DESC LIMIT 1`, clusterName)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, fmt.Errorf("cluster %s: %w", clusterName, ErrNotFound)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("failed to select cluster %s: %w", clusterName, err)
	}
	return inst, nil
}

// List returns all instances ordered by ID.
func (s *Store) List(ctx context.Context) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select instances: %w", err)
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Update applies fn to the stored instance inside one transaction. A state
// change made by fn is checked against the allowed transitions.
func (s *Store) Update(ctx context.Context, id string, fn func(*Instance) error) (Instance, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Instance{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inst, err := scanInstance(tx.QueryRowContext(ctx, selectColumns+` WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("failed to select instance %s: %w", id, err)
	}

	from := inst.State
	if err := fn(&inst); err != nil {
		return Instance{}, err
	}
	if !CanTransition(from, inst.State) {
		return Instance{}, &TransitionError{ID: id, From: from, To: inst.State}
	}
	inst.ID = id
	inst.UpdatedAt = s.now().UTC()

	if err := s.write(ctx, tx, inst); err != nil {
		return Instance{}, err
	}
	if err := tx.Commit(); err != nil {
		return Instance{}, fmt.Errorf("failed to commit instance %s: %w", id, err)
	}
	return inst, nil
}

// Transition moves an instance to state to.
func (s *Store) Transition(ctx context.Context, id string, to State) (Instance, error) {
	return s.Update(ctx, id, func(inst *Instance) error {
		inst.State = to
		return nil
	})
}

// AddLabels merges labels into the instance's labels, overwriting existing keys.
func (s *Store) AddLabels(ctx context.Context, id string, labels map[string]string) error {
	_, err := s.Update(ctx, id, func(inst *Instance) error {
		if inst.Labels == nil {
			inst.Labels = map[string]string{}
		}
		for k, v := range labels {
			inst.Labels[k] = v
		}
		return nil
	})
	return err
}

// AssignSite records the physical site of an instance.
func (s *Store) AssignSite(ctx context.Context, id string, site Site) error {
	_, err := s.Update(ctx, id, func(inst *Instance) error {
		inst.Site = &site
		return nil
	})
	return err
}

// Delete removes an instance record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	return nil
}
