package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver; the Graph Store is a plain file, no cgo needed
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL CHECK(kind IN ('goal','spawn','fork','ask')),
	objective TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK(status IN ('pending','active','paused','complete','failed','cancelled')),
	parent_id INTEGER REFERENCES nodes(id),
	prompt TEXT NOT NULL DEFAULT '',
	returns TEXT NOT NULL DEFAULT 'text',
	result TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dependencies (
	node_id INTEGER NOT NULL REFERENCES nodes(id),
	depends_on INTEGER NOT NULL REFERENCES nodes(id),
	PRIMARY KEY (node_id, depends_on)
);

CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
CREATE INDEX IF NOT EXISTS idx_nodes_status ON nodes(status);
`

// SQLiteStore implements Store on top of a single SQLite file, following
// the same shape as the Python reference's CordDB (original_source/src/cord/db.py):
// WAL journaling plus a busy timeout so that many Tool Server processes,
// each opening their own connection to the same file, serialize safely.
type SQLiteStore struct {
	db *sql.DB
	// writeMu additionally serializes writes from within this process;
	// cross-process writers are serialized by SQLite's own file locking
	// under WAL, this just avoids busy-retry churn among our own goroutines.
	writeMu sync.Mutex
}

// Open creates or attaches to a SQLite-backed Graph Store at path. Pass
// ":memory:" for an ephemeral, process-local store (used by tests).
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("graph: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("graph: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("graph: init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateNode(ctx context.Context, in CreateInput) (ID, error) {
	if !in.Kind.Valid() {
		return 0, newError(CodeBadArgs, fmt.Sprintf("invalid kind %q", in.Kind))
	}
	if in.Objective == "" {
		return 0, newError(CodeBadArgs, "objective is required")
	}
	status := in.InitialStatus
	if status == "" {
		status = StatusPending
	}
	returns := in.Returns
	if returns == "" {
		returns = ReturnsText
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("graph: begin create: %w", err)
	}
	defer tx.Rollback()

	if in.Parent != nil {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ?`, int64(*in.Parent)).Scan(&exists); err != nil {
			return 0, fmt.Errorf("graph: check parent: %w", err)
		}
		if exists == 0 {
			return 0, newError(CodeNotFound, fmt.Sprintf("parent %s not found", in.Parent.Display()))
		}
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (kind, objective, status, parent_id, prompt, returns, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(in.Kind), in.Objective, string(status), nullableID(in.Parent), in.Prompt, string(returns),
		now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("graph: insert node: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("graph: last insert id: %w", err)
	}
	newID := ID(rowID)

	for _, dep := range in.DependsOn {
		var depExists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ?`, int64(dep)).Scan(&depExists); err != nil {
			return 0, fmt.Errorf("graph: check dependency: %w", err)
		}
		if depExists == 0 {
			return 0, newError(CodeNotFound, fmt.Sprintf("dependency %s not found", dep.Display()))
		}
		if cyclic, err := wouldCycle(ctx, tx, dep, newID); err != nil {
			return 0, err
		} else if cyclic {
			return 0, newError(CodeEdgeCycle, fmt.Sprintf("depending on %s would create a cycle", dep.Display()))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO dependencies (node_id, depends_on) VALUES (?, ?)`, int64(newID), int64(dep)); err != nil {
			return 0, fmt.Errorf("graph: insert dependency: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("graph: commit create: %w", err)
	}
	return newID, nil
}

// wouldCycle reports whether adding the edge (node -> dependsOn) closes a
// cycle, i.e. whether node is reachable from dependsOn by following
// existing depends_on edges forward.
func wouldCycle(ctx context.Context, tx *sql.Tx, dependsOn, node ID) (bool, error) {
	visited := map[ID]bool{}
	stack := []ID{dependsOn}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == node {
			return true, nil
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true

		rows, err := tx.QueryContext(ctx, `SELECT depends_on FROM dependencies WHERE node_id = ?`, int64(cur))
		if err != nil {
			return false, fmt.Errorf("graph: walk cycle check: %w", err)
		}
		var next []ID
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return false, fmt.Errorf("graph: scan cycle check: %w", err)
			}
			next = append(next, ID(id))
		}
		rows.Close()
		stack = append(stack, next...)
	}
	return false, nil
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id ID, status Status) error {
	if !status.Valid() {
		return newError(CodeBadArgs, fmt.Sprintf("invalid status %q", status))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.getStatus(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(cur, status) {
		return newError(CodeBadTransition, fmt.Sprintf("%s: %s -> %s not allowed", id.Display(), cur, status))
	}
	if cur == status {
		return nil // idempotent no-op
	}

	_, err = s.db.ExecContext(ctx, `UPDATE nodes SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UnixNano(), int64(id))
	if err != nil {
		return fmt.Errorf("graph: set status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getStatus(ctx context.Context, id ID) (Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM nodes WHERE id = ?`, int64(id)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", newError(CodeNotFound, fmt.Sprintf("node %s not found", id.Display()))
	}
	if err != nil {
		return "", fmt.Errorf("graph: get status: %w", err)
	}
	return Status(status), nil
}

func (s *SQLiteStore) Modify(ctx context.Context, id ID, objective, prompt *string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.getStatus(ctx, id)
	if err != nil {
		return err
	}
	if cur != StatusPending && cur != StatusPaused {
		return newError(CodeBadState, fmt.Sprintf("%s: modify requires pending or paused, got %s", id.Display(), cur))
	}
	if objective == nil && prompt == nil {
		return nil // silent no-op at the store layer; BadArgs is enforced by the tool server
	}

	set := "updated_at = ?"
	args := []any{time.Now().UnixNano()}
	if objective != nil {
		set = "objective = ?, " + set
		args = append([]any{*objective}, args...)
	}
	if prompt != nil {
		set = "prompt = ?, " + set
		args = append([]any{*prompt}, args...)
	}
	args = append(args, int64(id))

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE nodes SET %s WHERE id = ?`, set), args...)
	if err != nil {
		return fmt.Errorf("graph: modify: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Complete(ctx context.Context, id ID, result string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.getStatus(ctx, id)
	if err != nil {
		return err
	}
	if cur.Terminal() && cur != StatusComplete {
		return newError(CodeBadTransition, fmt.Sprintf("%s: %s -> %s not allowed", id.Display(), cur, StatusComplete))
	}
	_, err = s.db.ExecContext(ctx, `UPDATE nodes SET status = 'complete', result = ?, updated_at = ? WHERE id = ?`,
		result, time.Now().UnixNano(), int64(id))
	if err != nil {
		return fmt.Errorf("graph: complete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Fail(ctx context.Context, id ID, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.getStatus(ctx, id)
	if err != nil {
		return err
	}
	if cur.Terminal() {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `UPDATE nodes SET status = 'failed', result = ?, updated_at = ? WHERE id = ?`,
		reason, time.Now().UnixNano(), int64(id))
	if err != nil {
		return fmt.Errorf("graph: fail: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id ID) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, kind, objective, status, parent_id, prompt, returns, result, created_at, updated_at FROM nodes WHERE id = ?`, int64(id))
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graph: get: %w", err)
	}
	deps, err := s.Dependencies(ctx, id)
	if err != nil {
		return nil, err
	}
	n.DependsOn = deps
	return n, nil
}

func (s *SQLiteStore) Children(ctx context.Context, id ID) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, objective, status, parent_id, prompt, returns, result, created_at, updated_at FROM nodes WHERE parent_id = ? ORDER BY id`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("graph: children: %w", err)
	}
	defer rows.Close()
	return s.scanNodes(ctx, rows)
}

func (s *SQLiteStore) Dependencies(ctx context.Context, id ID) ([]ID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT depends_on FROM dependencies WHERE node_id = ? ORDER BY depends_on`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("graph: dependencies: %w", err)
	}
	defer rows.Close()
	var out []ID
	for rows.Next() {
		var dep int64
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("graph: scan dependency: %w", err)
		}
		out = append(out, ID(dep))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Tree(ctx context.Context) (*TreeNode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, kind, objective, status, parent_id, prompt, returns, result, created_at, updated_at FROM nodes WHERE parent_id IS NULL ORDER BY id LIMIT 1`)
	root, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graph: tree root: %w", err)
	}
	tn := &TreeNode{Node: *root}
	if err := s.attachChildren(ctx, tn); err != nil {
		return nil, err
	}
	return tn, nil
}

func (s *SQLiteStore) attachChildren(ctx context.Context, tn *TreeNode) error {
	children, err := s.Children(ctx, tn.ID)
	if err != nil {
		return err
	}
	for _, c := range children {
		child := &TreeNode{Node: *c}
		if err := s.attachChildren(ctx, child); err != nil {
			return err
		}
		tn.Children = append(tn.Children, child)
	}
	return nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, objective, status, parent_id, prompt, returns, result, created_at, updated_at FROM nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("graph: all: %w", err)
	}
	defer rows.Close()
	return s.scanNodes(ctx, rows)
}

func (s *SQLiteStore) FindReady(ctx context.Context) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.kind, n.objective, n.status, n.parent_id, n.prompt, n.returns, n.result, n.created_at, n.updated_at
		FROM nodes n
		WHERE n.status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM dependencies d
			JOIN nodes dep ON dep.id = d.depends_on
			WHERE d.node_id = n.id AND dep.status != 'complete'
		)
		ORDER BY n.id`)
	if err != nil {
		return nil, fmt.Errorf("graph: find ready: %w", err)
	}
	defer rows.Close()
	return s.scanNodes(ctx, rows)
}

func (s *SQLiteStore) IsQuiescent(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE status NOT IN ('complete', 'failed', 'cancelled')`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("graph: is quiescent: %w", err)
	}
	return count == 0, nil
}

func (s *SQLiteStore) GoalChain(ctx context.Context, id ID) ([]ChainEntry, error) {
	var chain []ChainEntry
	cur := &id
	for cur != nil {
		n, err := s.Get(ctx, *cur)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, newError(CodeNotFound, fmt.Sprintf("node %s not found", cur.Display()))
		}
		chain = append(chain, ChainEntry{ID: n.ID, Objective: n.Objective})
		cur = n.Parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (s *SQLiteStore) CompletedResults(ctx context.Context, ids []ID) (map[ID]string, error) {
	out := map[ID]string{}
	for _, id := range ids {
		n, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if n != nil && n.Status == StatusComplete && n.Result != "" {
			out[id] = n.Result
		}
	}
	return out, nil
}

func (s *SQLiteStore) scanNodes(ctx context.Context, rows *sql.Rows) ([]*Node, error) {
	var out []*Node
	for rows.Next() {
		n, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("graph: scan node: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, n := range out {
		deps, err := s.Dependencies(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		n.DependsOn = deps
	}
	return out, nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows, whose Scan signatures
// match but share no interface in database/sql.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	return scanNodeRow(row)
}

func scanNodeRow(row rowScanner) (*Node, error) {
	var (
		id                     int64
		kind, objective        string
		status                 string
		parentID               sql.NullInt64
		prompt, returns, result string
		createdAt, updatedAt   int64
	)
	if err := row.Scan(&id, &kind, &objective, &status, &parentID, &prompt, &returns, &result, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n := &Node{
		ID:        ID(id),
		Kind:      Kind(kind),
		Objective: objective,
		Status:    Status(status),
		Prompt:    prompt,
		Returns:   Returns(returns),
		Result:    result,
		CreatedAt: time.Unix(0, createdAt),
		UpdatedAt: time.Unix(0, updatedAt),
	}
	if parentID.Valid {
		pid := ID(parentID.Int64)
		n.Parent = &pid
	}
	return n, nil
}

func nullableID(id *ID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}
