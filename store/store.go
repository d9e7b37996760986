// Package store implements this repo's persistent layer (spec §6's
// relational store contract) on top of pgx, in the teacher pack's own
// connect/pool/exec shape (leanlp-BTC-coinjoin's internal/db.PostgresStore).
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hhanh00/shielded-vote/field"
	"github.com/hhanh00/shielded-vote/merkletree"
)

// Store wraps a pooled PostgreSQL connection, mirroring
// leanlp-BTC-coinjoin/internal/db.PostgresStore's pool-holder shape.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pooled connection and verifies it with a ping, the same
// two-step Connect leanlp-BTC-coinjoin's db package performs.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// schema is the DDL for every table spec §6 names. Applied once at
// startup; CREATE TABLE IF NOT EXISTS keeps InitSchema idempotent across
// restarts of the restartable ingestor (spec §4.B).
const schema = `
CREATE TABLE IF NOT EXISTS properties (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ballots (
	id       BIGSERIAL PRIMARY KEY,
	election TEXT NOT NULL,
	height   BIGINT NOT NULL,
	hash     BYTEA NOT NULL,
	data     BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS nfs (
	id       BIGSERIAL PRIMARY KEY,
	election TEXT NOT NULL,
	hash     BYTEA NOT NULL,
	UNIQUE (election, hash)
);

CREATE TABLE IF NOT EXISTS cmxs (
	id       BIGSERIAL PRIMARY KEY,
	election TEXT NOT NULL,
	hash     BYTEA NOT NULL,
	UNIQUE (election, hash)
);

CREATE TABLE IF NOT EXISTS notes (
	id       BIGSERIAL PRIMARY KEY,
	election TEXT NOT NULL,
	scope    SMALLINT NOT NULL,
	position BIGINT NOT NULL,
	height   BIGINT NOT NULL,
	txid     BYTEA NOT NULL,
	value    BIGINT NOT NULL,
	div      BYTEA NOT NULL,
	rseed    BYTEA NOT NULL,
	nf       BYTEA NOT NULL,
	dnf      BYTEA NOT NULL,
	rho      BYTEA NOT NULL,
	spent    BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (election, position)
);

CREATE TABLE IF NOT EXISTS cmx_roots (
	election TEXT NOT NULL,
	height   BIGINT NOT NULL,
	hash     BYTEA NOT NULL,
	PRIMARY KEY (election, height)
);

CREATE TABLE IF NOT EXISTS cmx_frontiers (
	election TEXT NOT NULL,
	height   BIGINT NOT NULL,
	frontier BYTEA NOT NULL,
	PRIMARY KEY (election, height)
);
`

// InitSchema applies the DDL above, mirroring
// leanlp-BTC-coinjoin/internal/db.PostgresStore.InitSchema's single
// pool.Exec call — this repo embeds its schema as a constant rather than
// reading a file off disk, since the teacher's file-based approach assumed
// a working directory this binary cannot assume.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// Property reads a key from the properties table (spec §6: "used to
// persist the ingestor's last processed height").
func (s *Store) Property(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM properties WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: read property %q: %w", name, err)
	}
	return value, true, nil
}

// SetProperty upserts a properties row.
func (s *Store) SetProperty(ctx context.Context, name, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO properties (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, name, value)
	if err != nil {
		return fmt.Errorf("store: set property %q: %w", name, err)
	}
	return nil
}

// AppendCMX inserts the next cmx leaf for election. Insertion order equals
// global position (spec §6: "Insertion order of cmxs equals global
// position; this ordering is load-bearing for path construction") — the
// caller is responsible for calling this in leaf order, one election's
// writer at a time (spec §5: "single-writer").
func (s *Store) AppendCMX(ctx context.Context, election string, leaf field.Element) error {
	b := leaf.Bytes()
	_, err := s.pool.Exec(ctx, `INSERT INTO cmxs (election, hash) VALUES ($1, $2)`, election, b[:])
	if err != nil {
		return fmt.Errorf("store: append cmx: %w", err)
	}
	return nil
}

// LoadCMXs returns every cmx leaf for election in insertion (= position)
// order, the slice merkletree.BuildPaths needs.
func (s *Store) LoadCMXs(ctx context.Context, election string) ([]field.Element, error) {
	rows, err := s.pool.Query(ctx, `SELECT hash FROM cmxs WHERE election = $1 ORDER BY id`, election)
	if err != nil {
		return nil, fmt.Errorf("store: load cmxs: %w", err)
	}
	defer rows.Close()

	var out []field.Element
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("store: scan cmx: %w", err)
		}
		e, err := field.FromLEBytes(b)
		if err != nil {
			return nil, fmt.Errorf("store: decode cmx: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertNullifier records a newly revealed nullifier, failing on the
// UNIQUE(election, hash) constraint if it was already present — the
// store-level half of spec §4.B's "duplicates are a fatal corruption"
// check (the ingestor's in-memory NFSET catches this first; this
// constraint is the durable backstop against two ingestion runs racing).
func (s *Store) InsertNullifier(ctx context.Context, election string, nf field.Element) error {
	b := nf.Bytes()
	_, err := s.pool.Exec(ctx, `INSERT INTO nfs (election, hash) VALUES ($1, $2)`, election, b[:])
	if err != nil {
		return fmt.Errorf("store: insert nullifier: %w", err)
	}
	return nil
}

// LoadNullifiers returns every nullifier recorded for election, sorted
// ascending by field order (nfrange.Build's input contract).
func (s *Store) LoadNullifiers(ctx context.Context, election string) ([]field.Element, error) {
	rows, err := s.pool.Query(ctx, `SELECT hash FROM nfs WHERE election = $1`, election)
	if err != nil {
		return nil, fmt.Errorf("store: load nullifiers: %w", err)
	}
	defer rows.Close()

	var out []field.Element
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("store: scan nullifier: %w", err)
		}
		e, err := field.FromLEBytes(b)
		if err != nil {
			return nil, fmt.Errorf("store: decode nullifier: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortFieldsAscending(out)
	return out, nil
}

func sortFieldsAscending(xs []field.Element) {
	sort.Slice(xs, func(i, j int) bool { return xs[i].Cmp(xs[j]) < 0 })
}

// Note is the persisted shape of one own note (spec §6's notes table).
type Note struct {
	Scope    uint8
	Position uint64
	Height   uint64
	TxID     [32]byte
	Value    uint64
	Div      [11]byte
	Rseed    [32]byte
	Nf       field.Element
	Dnf      field.Element
	Rho      field.Element
	Spent    bool
}

// InsertNote persists one own note detected by the ingestor.
func (s *Store) InsertNote(ctx context.Context, election string, n Note) error {
	nfB := n.Nf.Bytes()
	dnfB := n.Dnf.Bytes()
	rhoB := n.Rho.Bytes()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notes (election, scope, position, height, txid, value, div, rseed, nf, dnf, rho, spent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (election, position) DO NOTHING`,
		election, n.Scope, n.Position, n.Height, n.TxID[:], n.Value, n.Div[:], n.Rseed[:], nfB[:], dnfB[:], rhoB[:], n.Spent)
	if err != nil {
		return fmt.Errorf("store: insert note: %w", err)
	}
	return nil
}

// LoadNote returns the own note recorded at position for election, or nil
// if none was recorded there (the CLI's build-ballot subcommand's --notes
// lookup).
func (s *Store) LoadNote(ctx context.Context, election string, position uint64) (*Note, error) {
	var n Note
	var txid, div, rseed, nf, dnf, rho []byte
	err := s.pool.QueryRow(ctx, `
		SELECT scope, position, height, txid, value, div, rseed, nf, dnf, rho, spent
		FROM notes WHERE election = $1 AND position = $2`, election, position).
		Scan(&n.Scope, &n.Position, &n.Height, &txid, &n.Value, &div, &rseed, &nf, &dnf, &rho, &n.Spent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load note at position %d: %w", position, err)
	}
	copy(n.TxID[:], txid)
	copy(n.Div[:], div)
	copy(n.Rseed[:], rseed)
	var err2 error
	if n.Nf, err2 = field.FromLEBytes(nf); err2 != nil {
		return nil, fmt.Errorf("store: decode note nf: %w", err2)
	}
	if n.Dnf, err2 = field.FromLEBytes(dnf); err2 != nil {
		return nil, fmt.Errorf("store: decode note dnf: %w", err2)
	}
	if n.Rho, err2 = field.FromLEBytes(rho); err2 != nil {
		return nil, fmt.Errorf("store: decode note rho: %w", err2)
	}
	return &n, nil
}

// MarkSpent flags a note's nullifier as spent, e.g. once a ballot
// consuming it has been accepted.
func (s *Store) MarkSpent(ctx context.Context, election string, nf field.Element) error {
	b := nf.Bytes()
	_, err := s.pool.Exec(ctx, `UPDATE notes SET spent = TRUE WHERE election = $1 AND nf = $2`, election, b[:])
	if err != nil {
		return fmt.Errorf("store: mark note spent: %w", err)
	}
	return nil
}

// RecordAnchor persists the cmx root observed at height (spec §6's
// cmx_roots table).
func (s *Store) RecordAnchor(ctx context.Context, election string, height uint64, root field.Element) error {
	b := root.Bytes()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cmx_roots (election, height, hash) VALUES ($1, $2, $3)
		ON CONFLICT (election, height) DO UPDATE SET hash = EXCLUDED.hash`, election, height, b[:])
	if err != nil {
		return fmt.Errorf("store: record anchor: %w", err)
	}
	return nil
}

// SaveFrontier persists the incremental cmx frontier at height (spec §6's
// cmx_frontiers table), so a resumed ingestor can rebuild its Frontier
// without replaying every leaf from position zero.
func (s *Store) SaveFrontier(ctx context.Context, election string, height uint64, f *merkletree.Frontier) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cmx_frontiers (election, height, frontier) VALUES ($1, $2, $3)
		ON CONFLICT (election, height) DO UPDATE SET frontier = EXCLUDED.frontier`,
		election, height, f.Encode())
	if err != nil {
		return fmt.Errorf("store: save frontier: %w", err)
	}
	return nil
}

// LoadLatestFrontier returns the most recently saved frontier for
// election, or nil if none has been saved yet.
func (s *Store) LoadLatestFrontier(ctx context.Context, election string) (*merkletree.Frontier, error) {
	var b []byte
	err := s.pool.QueryRow(ctx, `
		SELECT frontier FROM cmx_frontiers WHERE election = $1 ORDER BY height DESC LIMIT 1`, election).Scan(&b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load frontier: %w", err)
	}
	f, err := merkletree.DecodeFrontier(b)
	if err != nil {
		return nil, fmt.Errorf("store: decode frontier: %w", err)
	}
	return f, nil
}

// InsertBallot persists an accepted ballot's wire bytes (spec §6's ballots
// table).
func (s *Store) InsertBallot(ctx context.Context, election string, height uint64, hash [32]byte, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ballots (election, height, hash, data) VALUES ($1, $2, $3, $4)`,
		election, height, hash[:], data)
	if err != nil {
		return fmt.Errorf("store: insert ballot: %w", err)
	}
	return nil
}

// LoadBallots returns every ballot's wire bytes recorded for election, in
// insertion order, for tally replay.
func (s *Store) LoadBallots(ctx context.Context, election string) ([][]byte, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM ballots WHERE election = $1 ORDER BY id`, election)
	if err != nil {
		return nil, fmt.Errorf("store: load ballots: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("store: scan ballot: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
