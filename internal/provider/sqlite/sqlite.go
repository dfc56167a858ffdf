package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"github.com/newrelic/nr-cmdb-node-source/internal/provider"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
	"github.com/spf13/viper"

	_ "modernc.org/sqlite"
)

var tableRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SnapshotProvider reads records from an inventory snapshot stored in a
// SQLite table with certname, facts and classes columns. Facts and classes
// hold JSON documents.
type SnapshotProvider struct {
	Interop *interop.Interop
	Path    string
	Table   string
}

func init() {
	provider.RegisterProvider("sqlite", New)
}

func New(i *interop.Interop, v *viper.Viper) (provider.Provider, error) {
	v.AutomaticEnv()
	v.SetEnvPrefix("NR_CMDB_SQLITE")

	path := v.GetString("path")
	if path == "" {
		return nil, fmt.Errorf("missing sqlite snapshot path")
	}

	table := v.GetString("table")
	if table == "" {
		table = "nodes"
	}

	if !tableRE.MatchString(table) {
		return nil, fmt.Errorf("invalid sqlite table name: %s", table)
	}

	return &SnapshotProvider{Interop: i, Path: path, Table: table}, nil
}

func (p *SnapshotProvider) GetRecords(ctx context.Context) ([]inventory.Record, error) {
	var records []inventory.Record

	err := p.stream(ctx, func(r inventory.Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Interop.Logger.Debugf("read %d records from %s", len(records), p.Path)

	return records, nil
}

func (p *SnapshotProvider) stream(
	ctx context.Context,
	fn func(inventory.Record) error,
) error {
	db, err := sql.Open("sqlite", p.Path)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", p.Path, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(
		ctx,
		fmt.Sprintf("SELECT certname, facts, classes FROM %s ORDER BY certname", p.Table),
	)
	if err != nil {
		return fmt.Errorf("query %s: %w", p.Table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			certname       string
			facts, classes sql.NullString
		)

		if err := rows.Scan(&certname, &facts, &classes); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}

		if certname == "" {
			p.Interop.Logger.Warn("skipping snapshot row with no certname")
			continue
		}

		r := inventory.Record{Certname: certname, Facts: map[string]interface{}{}}

		if facts.Valid && facts.String != "" {
			if err := json.Unmarshal([]byte(facts.String), &r.Facts); err != nil {
				return fmt.Errorf("parse facts for %s: %w", certname, err)
			}
			if r.Facts == nil {
				r.Facts = map[string]interface{}{}
			}
		}

		if classes.Valid && classes.String != "" {
			if err := json.Unmarshal([]byte(classes.String), &r.Classes); err != nil {
				return fmt.Errorf("parse classes for %s: %w", certname, err)
			}
		}

		if err := fn(r); err != nil {
			return err
		}
	}

	return rows.Err()
}
