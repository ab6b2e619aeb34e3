// SQLite-backed rate repository. Factor tables and rule predicates are
// stored as JSON columns; money columns are TEXT so decimals survive intact.
package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"premium-rating/core/types"
	"premium-rating/internal/errors"
	"premium-rating/internal/logging"

	"go.uber.org/zap"
)

// SQLiteStore persists reference data to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Repository("open sqlite", err)
	}

	// WAL mode: rating reads run while the admin process writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Repository("set WAL mode", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Repository("migrate", err)
	}

	logging.Info("sqlite rate store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rate_tables (
			id           TEXT PRIMARY KEY,
			state        TEXT NOT NULL,
			product      TEXT NOT NULL,
			coverage     TEXT NOT NULL,
			status       TEXT NOT NULL,
			approval_id  TEXT,
			base_rate    TEXT NOT NULL,
			min_premium  TEXT NOT NULL,
			max_premium  TEXT NOT NULL,
			effective_at TEXT NOT NULL,
			expires_at   TEXT,
			factors_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_lookup ON rate_tables(state, product, coverage)`,

		`CREATE TABLE IF NOT EXISTS territories (
			state        TEXT NOT NULL,
			zip_code     TEXT NOT NULL,
			product      TEXT NOT NULL,
			record_json  TEXT NOT NULL,
			effective_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_territory_lookup ON territories(state, zip_code, product)`,

		`CREATE TABLE IF NOT EXISTS adjustment_rules (
			code      TEXT NOT NULL,
			kind      TEXT NOT NULL, -- discount | surcharge
			rule_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rule_kind ON adjustment_rules(kind)`,

		`CREATE TABLE IF NOT EXISTS state_rules (
			state     TEXT PRIMARY KEY,
			rule_json TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ImportManual bulk-loads a parsed manual into the store.
// Used by the CLI to seed a database from a YAML filing.
func (s *SQLiteStore) ImportManual(ctx context.Context, m *Manual) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Repository("begin import", err)
	}
	defer tx.Rollback()

	for _, tables := range m.tables {
		for _, t := range tables {
			factors, err := json.Marshal(struct {
				Raw *types.RateTable `json:"raw"`
			}{Raw: t})
			if err != nil {
				return errors.Repository("encode rate table "+t.ID, err)
			}
			expires := sql.NullString{}
			if t.ExpiresAt != nil {
				expires = sql.NullString{String: t.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"), Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO rate_tables
				(id, state, product, coverage, status, approval_id, base_rate, min_premium, max_premium, effective_at, expires_at, factors_json)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
				t.ID, t.State, string(t.Product), string(t.Coverage), string(t.Status), t.ApprovalID,
				t.BaseRate.String(), t.MinPremium.String(), t.MaxPremium.String(),
				t.EffectiveAt.UTC().Format("2006-01-02T15:04:05Z"), expires, string(factors)); err != nil {
				return errors.Repository("insert rate table "+t.ID, err)
			}
		}
	}

	for _, recs := range m.territories {
		for _, r := range recs {
			blob, err := json.Marshal(r)
			if err != nil {
				return errors.Repository("encode territory "+r.ZIPCode, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO territories (state, zip_code, product, record_json, effective_at) VALUES (?,?,?,?,?)`,
				r.State, r.ZIPCode, string(r.Product), string(blob), r.EffectiveAt.UTC().Format("2006-01-02T15:04:05Z")); err != nil {
				return errors.Repository("insert territory "+r.ZIPCode, err)
			}
		}
	}

	insertRules := func(kind string, rules []*types.AdjustmentRule) error {
		for _, r := range rules {
			blob, err := json.Marshal(r)
			if err != nil {
				return errors.Repository("encode rule "+r.Code, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO adjustment_rules (code, kind, rule_json) VALUES (?,?,?)`,
				r.Code, kind, string(blob)); err != nil {
				return errors.Repository("insert rule "+r.Code, err)
			}
		}
		return nil
	}
	if err := insertRules("discount", m.discounts); err != nil {
		return err
	}
	if err := insertRules("surcharge", m.surcharges); err != nil {
		return err
	}

	for state, sr := range m.stateRules {
		blob, err := json.Marshal(sr)
		if err != nil {
			return errors.Repository("encode state rules "+state, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO state_rules (state, rule_json) VALUES (?,?)`,
			state, string(blob)); err != nil {
			return errors.Repository("insert state rules "+state, err)
		}
	}

	return tx.Commit()
}

// HasState reports whether any rate tables exist for a state
func (s *SQLiteStore) HasState(ctx context.Context, state string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rate_tables WHERE state = ?`, strings.ToUpper(state)).Scan(&n)
	if err != nil {
		return false, errors.Repository("query state", err)
	}
	return n > 0, nil
}

// GetRateTables returns all tables for a state/product/coverage combination
func (s *SQLiteStore) GetRateTables(ctx context.Context, state string, product types.ProductType, coverage types.CoverageType) ([]*types.RateTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT factors_json FROM rate_tables WHERE state = ? AND product = ? AND coverage = ?`,
		strings.ToUpper(state), string(product), string(coverage))
	if err != nil {
		return nil, errors.Repository("query rate tables", err)
	}
	defer rows.Close()

	var out []*types.RateTable
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, errors.Repository("scan rate table", err)
		}
		var wrapper struct {
			Raw *types.RateTable `json:"raw"`
		}
		if err := json.Unmarshal([]byte(blob), &wrapper); err != nil {
			return nil, errors.Repository("decode rate table", err)
		}
		out = append(out, wrapper.Raw)
	}
	return out, rows.Err()
}

// ListCoverages returns the coverages with at least one approved table
func (s *SQLiteStore) ListCoverages(ctx context.Context, state string, product types.ProductType) ([]types.CoverageType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT coverage FROM rate_tables WHERE state = ? AND product = ? AND status = 'approved'`,
		strings.ToUpper(state), string(product))
	if err != nil {
		return nil, errors.Repository("query coverages", err)
	}
	defer rows.Close()

	var out []types.CoverageType
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errors.Repository("scan coverage", err)
		}
		out = append(out, types.CoverageType(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, rows.Err()
}

// GetTerritoryRecords returns the filed territory data for a ZIP
func (s *SQLiteStore) GetTerritoryRecords(ctx context.Context, state, zip string, product types.ProductType) ([]*types.TerritoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM territories WHERE state = ? AND zip_code = ? AND product = ?`,
		strings.ToUpper(state), zip, string(product))
	if err != nil {
		return nil, errors.Repository("query territories", err)
	}
	defer rows.Close()

	var out []*types.TerritoryRecord
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, errors.Repository("scan territory", err)
		}
		var rec types.TerritoryRecord
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			return nil, errors.Repository("decode territory", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// ListDiscountRules returns the discount rules covering a state/product
func (s *SQLiteStore) ListDiscountRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	return s.listRules(ctx, "discount", state, product)
}

// ListSurchargeRules returns the surcharge rules covering a state/product
func (s *SQLiteStore) ListSurchargeRules(ctx context.Context, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	return s.listRules(ctx, "surcharge", state, product)
}

func (s *SQLiteStore) listRules(ctx context.Context, kind, state string, product types.ProductType) ([]*types.AdjustmentRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rule_json FROM adjustment_rules WHERE kind = ?`, kind)
	if err != nil {
		return nil, errors.Repository("query rules", err)
	}
	defer rows.Close()

	var out []*types.AdjustmentRule
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, errors.Repository("scan rule", err)
		}
		var rule types.AdjustmentRule
		if err := json.Unmarshal([]byte(blob), &rule); err != nil {
			return nil, errors.Repository("decode rule", err)
		}
		if rule.AppliesTo(strings.ToUpper(state), product) {
			out = append(out, &rule)
		}
	}
	return out, rows.Err()
}

// GetStateRules returns the regulatory rule set for a state
func (s *SQLiteStore) GetStateRules(ctx context.Context, state string) (*types.StateRuleSet, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT rule_json FROM state_rules WHERE state = ?`, strings.ToUpper(state)).Scan(&blob)
	if err == sql.ErrNoRows {
		return &types.StateRuleSet{State: strings.ToUpper(state)}, nil
	}
	if err != nil {
		return nil, errors.Repository("query state rules", err)
	}
	var sr types.StateRuleSet
	if err := json.Unmarshal([]byte(blob), &sr); err != nil {
		return nil, errors.Repository("decode state rules", err)
	}
	return &sr, nil
}

// ContentHash identifies the stored snapshot by hashing table identities
func (s *SQLiteStore) ContentHash() string {
	rows, err := s.db.Query(`SELECT id, approval_id FROM rate_tables ORDER BY id`)
	if err != nil {
		return "unknown"
	}
	defer rows.Close()

	h := sha256.New()
	for rows.Next() {
		var id, approval string
		if err := rows.Scan(&id, &approval); err != nil {
			return "unknown"
		}
		h.Write([]byte(id + "=" + approval + ";"))
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
