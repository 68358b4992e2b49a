// Package pgstore is nclav's multi-operator store: PostgreSQL via
// database/sql and github.com/lib/pq, migrated with golang-migrate. Use
// this over sqlitestore when more than one nclavd process needs to share
// applied state (an HA deployment, or a team's shared dev reconciler).
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
	"github.com/dragon-panic/nclav/pkg/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config configures the connection to a PostgreSQL database.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements store.Store over PostgreSQL.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New constructs a Store; call Init to open the connection pool and run
// migrations before use.
func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, nclaverr.NewConfigError("pgstore: dsn is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &Store{cfg: cfg}, nil
}

func (s *Store) Init(ctx context.Context) error {
	db, err := sql.Open("postgres", s.cfg.DSN)
	if err != nil {
		return nclaverr.NewStoreError("pgstore: opening connection").WithErr(err)
	}
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nclaverr.NewStoreError("pgstore: pinging database").WithErr(err)
	}

	s.db = db
	return s.migrate()
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nclaverr.NewStoreError("pgstore: loading migration source").WithErr(err)
	}
	driver, err := postgres.WithInstance(s.db, &postgres.Config{})
	if err != nil {
		return nclaverr.NewStoreError("pgstore: creating migration driver").WithErr(err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nclaverr.NewStoreError("pgstore: creating migration instance").WithErr(err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nclaverr.NewStoreError("pgstore: running migrations").WithErr(err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return nclaverr.NewStoreError("pgstore: health check ping").WithErr(err)
	}
	return nil
}

func (s *Store) UpsertEnclave(ctx context.Context, rec domain.EnclaveRecord, expectedGeneration uint64) (uint64, error) {
	var newGen uint64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var curGen uint64
		err := tx.QueryRowContext(ctx, `SELECT generation FROM enclaves WHERE id = $1`, rec.Decl.Id).Scan(&curGen)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if expectedGeneration != 0 {
				return nclaverr.NewStoreConflict("enclave %s: expected generation %d, got none", rec.Decl.Id, expectedGeneration).WithResource(string(rec.Decl.Id))
			}
		case err != nil:
			return nclaverr.NewStoreError("enclave %s: reading current generation", rec.Decl.Id).WithErr(err)
		default:
			if curGen != expectedGeneration {
				return nclaverr.NewStoreConflict("enclave %s: expected generation %d, got %d", rec.Decl.Id, expectedGeneration, curGen).WithResource(string(rec.Decl.Id))
			}
		}

		newGen = expectedGeneration + 1
		rec.Meta.Generation = newGen
		declJSON, metaJSON, err := encodeRecord(rec.Decl, rec.Meta)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO enclaves (id, decl_json, meta_json, generation) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET decl_json = excluded.decl_json, meta_json = excluded.meta_json, generation = excluded.generation
		`, rec.Decl.Id, declJSON, metaJSON, newGen)
		if err != nil {
			return nclaverr.NewStoreError("enclave %s: upserting", rec.Decl.Id).WithErr(err)
		}
		return nil
	})
	return newGen, err
}

func (s *Store) GetEnclave(ctx context.Context, id domain.EnclaveId) (*domain.EnclaveRecord, error) {
	var declJSON, metaJSON string
	err := s.db.QueryRowContext(ctx, `SELECT decl_json, meta_json FROM enclaves WHERE id = $1`, id).Scan(&declJSON, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nclaverr.NewStoreError("enclave %s: reading", id).WithErr(err)
	}
	decl, meta, err := decodeRecord[domain.EnclaveDecl](declJSON, metaJSON)
	if err != nil {
		return nil, err
	}
	return &domain.EnclaveRecord{Decl: decl, Meta: meta}, nil
}

func (s *Store) ListEnclaves(ctx context.Context) ([]domain.EnclaveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT decl_json, meta_json FROM enclaves ORDER BY id`)
	if err != nil {
		return nil, nclaverr.NewStoreError("listing enclaves").WithErr(err)
	}
	defer rows.Close()

	var out []domain.EnclaveRecord
	for rows.Next() {
		var declJSON, metaJSON string
		if err := rows.Scan(&declJSON, &metaJSON); err != nil {
			return nil, nclaverr.NewStoreError("scanning enclave row").WithErr(err)
		}
		decl, meta, err := decodeRecord[domain.EnclaveDecl](declJSON, metaJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.EnclaveRecord{Decl: decl, Meta: meta})
	}
	return out, rows.Err()
}

func (s *Store) DeleteEnclave(ctx context.Context, id domain.EnclaveId, expectedGeneration uint64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var curGen uint64
		err := tx.QueryRowContext(ctx, `SELECT generation FROM enclaves WHERE id = $1`, id).Scan(&curGen)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return nclaverr.NewStoreError("enclave %s: reading generation for delete", id).WithErr(err)
		}
		if curGen != expectedGeneration {
			return nclaverr.NewStoreConflict("enclave %s: expected generation %d, got %d", id, expectedGeneration, curGen).WithResource(string(id))
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM enclaves WHERE id = $1`, id)
		if err != nil {
			return nclaverr.NewStoreError("enclave %s: deleting", id).WithErr(err)
		}
		return nil
	})
}

func (s *Store) UpsertPartition(ctx context.Context, rec domain.PartitionRecord, expectedGeneration uint64) (uint64, error) {
	var newGen uint64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var curGen uint64
		err := tx.QueryRowContext(ctx, `SELECT generation FROM partitions WHERE enclave_id = $1 AND id = $2`, rec.EnclaveId, rec.Decl.Id).Scan(&curGen)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if expectedGeneration != 0 {
				return nclaverr.NewStoreConflict("partition %s/%s: expected generation %d, got none", rec.EnclaveId, rec.Decl.Id, expectedGeneration).WithResource(store.TFStateKey(rec.EnclaveId, rec.Decl.Id))
			}
		case err != nil:
			return nclaverr.NewStoreError("partition %s/%s: reading current generation", rec.EnclaveId, rec.Decl.Id).WithErr(err)
		default:
			if curGen != expectedGeneration {
				return nclaverr.NewStoreConflict("partition %s/%s: expected generation %d, got %d", rec.EnclaveId, rec.Decl.Id, expectedGeneration, curGen).WithResource(store.TFStateKey(rec.EnclaveId, rec.Decl.Id))
			}
		}

		newGen = expectedGeneration + 1
		rec.Meta.Generation = newGen
		declJSON, metaJSON, err := encodeRecord(rec.Decl, rec.Meta)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO partitions (enclave_id, id, decl_json, meta_json, generation) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (enclave_id, id) DO UPDATE SET decl_json = excluded.decl_json, meta_json = excluded.meta_json, generation = excluded.generation
		`, rec.EnclaveId, rec.Decl.Id, declJSON, metaJSON, newGen)
		if err != nil {
			return nclaverr.NewStoreError("partition %s/%s: upserting", rec.EnclaveId, rec.Decl.Id).WithErr(err)
		}
		return nil
	})
	return newGen, err
}

func (s *Store) GetPartition(ctx context.Context, enclaveId domain.EnclaveId, id domain.PartitionId) (*domain.PartitionRecord, error) {
	var declJSON, metaJSON string
	err := s.db.QueryRowContext(ctx, `SELECT decl_json, meta_json FROM partitions WHERE enclave_id = $1 AND id = $2`, enclaveId, id).Scan(&declJSON, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nclaverr.NewStoreError("partition %s/%s: reading", enclaveId, id).WithErr(err)
	}
	decl, meta, err := decodeRecord[domain.PartitionDecl](declJSON, metaJSON)
	if err != nil {
		return nil, err
	}
	return &domain.PartitionRecord{EnclaveId: enclaveId, Decl: decl, Meta: meta}, nil
}

func (s *Store) ListPartitions(ctx context.Context, enclaveId domain.EnclaveId) ([]domain.PartitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT decl_json, meta_json FROM partitions WHERE enclave_id = $1 ORDER BY id`, enclaveId)
	if err != nil {
		return nil, nclaverr.NewStoreError("listing partitions for %s", enclaveId).WithErr(err)
	}
	defer rows.Close()

	var out []domain.PartitionRecord
	for rows.Next() {
		var declJSON, metaJSON string
		if err := rows.Scan(&declJSON, &metaJSON); err != nil {
			return nil, nclaverr.NewStoreError("scanning partition row").WithErr(err)
		}
		decl, meta, err := decodeRecord[domain.PartitionDecl](declJSON, metaJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.PartitionRecord{EnclaveId: enclaveId, Decl: decl, Meta: meta})
	}
	return out, rows.Err()
}

func (s *Store) DeletePartition(ctx context.Context, enclaveId domain.EnclaveId, id domain.PartitionId, expectedGeneration uint64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var curGen uint64
		err := tx.QueryRowContext(ctx, `SELECT generation FROM partitions WHERE enclave_id = $1 AND id = $2`, enclaveId, id).Scan(&curGen)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return nclaverr.NewStoreError("partition %s/%s: reading generation for delete", enclaveId, id).WithErr(err)
		}
		if curGen != expectedGeneration {
			return nclaverr.NewStoreConflict("partition %s/%s: expected generation %d, got %d", enclaveId, id, expectedGeneration, curGen).WithResource(store.TFStateKey(enclaveId, id))
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM partitions WHERE enclave_id = $1 AND id = $2`, enclaveId, id)
		if err != nil {
			return nclaverr.NewStoreError("partition %s/%s: deleting", enclaveId, id).WithErr(err)
		}
		return nil
	})
}

func (s *Store) AppendEvent(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO events (enclave_id, partition_id, kind, timestamp, reconcile_run_id, message) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`, ev.EnclaveId, nullableString(string(ev.PartitionId)), ev.Kind, ev.Timestamp, ev.ReconcileRunId, ev.Message).Scan(&ev.Seq)
	if err != nil {
		return ev, nclaverr.NewStoreError("appending event").WithErr(err)
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, filter store.EventFilter, limit int) ([]domain.Event, error) {
	query := `SELECT seq, enclave_id, partition_id, kind, timestamp, reconcile_run_id, message FROM events WHERE TRUE`
	var args []any
	if filter.EnclaveId != "" {
		args = append(args, filter.EnclaveId)
		query += ` AND enclave_id = $` + itoa(len(args))
	}
	if filter.PartitionId != "" {
		args = append(args, filter.PartitionId)
		query += ` AND partition_id = $` + itoa(len(args))
	}
	query += ` ORDER BY seq DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nclaverr.NewStoreError("listing events").WithErr(err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var ev domain.Event
		var partitionId sql.NullString
		if err := rows.Scan(&ev.Seq, &ev.EnclaveId, &partitionId, &ev.Kind, &ev.Timestamp, &ev.ReconcileRunId, &ev.Message); err != nil {
			return nil, nclaverr.NewStoreError("scanning event row").WithErr(err)
		}
		ev.PartitionId = domain.PartitionId(partitionId.String)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) GetTFState(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM tf_state WHERE k = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nclaverr.NewStoreError("tf_state %s: reading", key).WithErr(err)
	}
	return data, nil
}

func (s *Store) PutTFState(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tf_state (k, data) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET data = excluded.data
	`, key, data)
	if err != nil {
		return nclaverr.NewStoreError("tf_state %s: writing", key).WithErr(err)
	}
	return nil
}

func (s *Store) DeleteTFState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tf_state WHERE k = $1`, key)
	if err != nil {
		return nclaverr.NewStoreError("tf_state %s: deleting", key).WithErr(err)
	}
	return nil
}

func (s *Store) LockTFState(ctx context.Context, key string, info store.LockInfo) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var existingJSON string
		err := tx.QueryRowContext(ctx, `SELECT lock_json FROM tf_locks WHERE k = $1`, key).Scan(&existingJSON)
		if err == nil {
			var existing store.LockInfo
			_ = json.Unmarshal([]byte(existingJSON), &existing)
			return nclaverr.NewLockConflict("state %s already locked by %s", key, existing.ID).WithResource(key).WithDetail("lock", existing)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nclaverr.NewStoreError("tf_locks %s: reading", key).WithErr(err)
		}

		b, err := json.Marshal(info)
		if err != nil {
			return nclaverr.NewStoreError("tf_locks %s: encoding lock info", key).WithErr(err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO tf_locks (k, lock_json) VALUES ($1, $2)`, key, b)
		if err != nil {
			return nclaverr.NewStoreError("tf_locks %s: inserting", key).WithErr(err)
		}
		return nil
	})
}

func (s *Store) UnlockTFState(ctx context.Context, key string, lockId string) error {
	if lockId == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM tf_locks WHERE k = $1`, key)
		if err != nil {
			return nclaverr.NewStoreError("tf_locks %s: force unlocking", key).WithErr(err)
		}
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var existingJSON string
		err := tx.QueryRowContext(ctx, `SELECT lock_json FROM tf_locks WHERE k = $1`, key).Scan(&existingJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return nclaverr.NewStoreError("tf_locks %s: reading", key).WithErr(err)
		}
		var existing store.LockInfo
		_ = json.Unmarshal([]byte(existingJSON), &existing)
		if existing.ID != lockId {
			return nclaverr.NewLockConflict("state %s: lock id %s does not match holder %s", key, lockId, existing.ID).WithResource(key)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM tf_locks WHERE k = $1`, key)
		if err != nil {
			return nclaverr.NewStoreError("tf_locks %s: deleting", key).WithErr(err)
		}
		return nil
	})
}

func (s *Store) GetTFLock(ctx context.Context, key string) (*store.LockInfo, error) {
	var lockJSON string
	err := s.db.QueryRowContext(ctx, `SELECT lock_json FROM tf_locks WHERE k = $1`, key).Scan(&lockJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nclaverr.NewStoreError("tf_locks %s: reading", key).WithErr(err)
	}
	var info store.LockInfo
	if err := json.Unmarshal([]byte(lockJSON), &info); err != nil {
		return nil, nclaverr.NewStoreError("tf_locks %s: decoding", key).WithErr(err)
	}
	return &info, nil
}

func (s *Store) AppendIacRun(ctx context.Context, run domain.IacRun) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var insertedSeq int64
		err := tx.QueryRowContext(ctx, `SELECT inserted_seq FROM iac_runs WHERE id = $1`, run.Id).Scan(&insertedSeq)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			var maxSeq sql.NullInt64
			if err := tx.QueryRowContext(ctx, `SELECT MAX(inserted_seq) FROM iac_runs`).Scan(&maxSeq); err != nil {
				return nclaverr.NewStoreError("iac_runs: reading max sequence").WithErr(err)
			}
			insertedSeq = maxSeq.Int64 + 1
		case err != nil:
			return nclaverr.NewStoreError("iac_runs %s: reading", run.Id).WithErr(err)
		}

		var finishedAt any
		if run.FinishedAt != nil {
			finishedAt = *run.FinishedAt
		}
		var exitCode any
		if run.ExitCode != nil {
			exitCode = *run.ExitCode
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO iac_runs (id, enclave_id, partition_id, operation, started_at, finished_at, status, exit_code, log, inserted_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				finished_at = excluded.finished_at, status = excluded.status,
				exit_code = excluded.exit_code, log = excluded.log
		`, run.Id, run.EnclaveId, run.PartitionId, run.Operation, run.StartedAt, finishedAt, run.Status, exitCode, run.Log, insertedSeq)
		if err != nil {
			return nclaverr.NewStoreError("iac_runs %s: upserting", run.Id).WithErr(err)
		}
		return nil
	})
}

func (s *Store) ListIacRuns(ctx context.Context, enclaveId domain.EnclaveId, partitionId domain.PartitionId) ([]domain.IacRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enclave_id, partition_id, operation, started_at, finished_at, status, exit_code, log
		FROM iac_runs WHERE enclave_id = $1 AND partition_id = $2
		ORDER BY inserted_seq DESC LIMIT $3
	`, enclaveId, partitionId, store.MaxIacRunHistory)
	if err != nil {
		return nil, nclaverr.NewStoreError("listing iac runs for %s/%s", enclaveId, partitionId).WithErr(err)
	}
	defer rows.Close()

	var out []domain.IacRun
	for rows.Next() {
		run, err := scanIacRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) GetIacRun(ctx context.Context, id string) (*domain.IacRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, enclave_id, partition_id, operation, started_at, finished_at, status, exit_code, log
		FROM iac_runs WHERE id = $1
	`, id)
	run, err := scanIacRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, nclaverr.NewStoreError("iac_run %s: reading", id).WithErr(err)
	}
	return &run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIacRun(row rowScanner) (domain.IacRun, error) {
	var run domain.IacRun
	var finishedAt sql.NullTime
	var exitCode sql.NullInt64

	if err := row.Scan(&run.Id, &run.EnclaveId, &run.PartitionId, &run.Operation, &run.StartedAt, &finishedAt, &run.Status, &exitCode, &run.Log); err != nil {
		return run, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		run.ExitCode = &v
	}
	return run, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nclaverr.NewStoreError("beginning transaction").WithErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return nclaverr.NewStoreError("committing transaction").WithErr(err)
	}
	return nil
}

func encodeRecord[T any](decl T, meta domain.ResourceMeta) (string, string, error) {
	declJSON, err := json.Marshal(decl)
	if err != nil {
		return "", "", nclaverr.NewStoreError("encoding declaration").WithErr(err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", "", nclaverr.NewStoreError("encoding resource metadata").WithErr(err)
	}
	return string(declJSON), string(metaJSON), nil
}

func decodeRecord[T any](declJSON, metaJSON string) (T, domain.ResourceMeta, error) {
	var decl T
	var meta domain.ResourceMeta
	if err := json.Unmarshal([]byte(declJSON), &decl); err != nil {
		return decl, meta, nclaverr.NewStoreError("decoding declaration").WithErr(err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return decl, meta, nclaverr.NewStoreError("decoding resource metadata").WithErr(err)
	}
	return decl, meta, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
