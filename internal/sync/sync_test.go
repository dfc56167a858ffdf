package sync

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"github.com/newrelic/nr-cmdb-node-source/internal/mapper"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	_ "github.com/newrelic/nr-cmdb-node-source/internal/provider/sqlite"
)

const testMapping = `
hostname:
  path: networking.ip
nodename:
  firstOf:
    - path: networking.hostname
    - path: trusted.certname
osName:
  path: os.name
tags:
  path: class
cpus:
  path: processorcount
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func createSnapshot(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "inventory.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec("CREATE TABLE nodes (certname TEXT, facts TEXT, classes TEXT)")
	require.NoError(t, err)

	rows := [][3]string{
		{
			"db01.example.com",
			`{"networking": {"ip": "10.0.0.3", "hostname": "db01"}, "os": {"name": "Ubuntu"}}`,
			`["role::db"]`,
		},
		{
			"lost.example.com",
			`{"os": {"name": "CentOS"}}`,
			`[]`,
		},
		{
			"web01.example.com",
			`{"networking": {"ip": "10.0.0.1", "hostname": "web01"}, "os": {"name": "CentOS"}, "processorcount": 8}`,
			`["role::web", "profile::base", "role::web"]`,
		},
	}

	for _, r := range rows {
		_, err = db.Exec("INSERT INTO nodes (certname, facts, classes) VALUES (?, ?, ?)", r[0], r[1], r[2])
		require.NoError(t, err)
	}

	return path
}

func testInterop(t *testing.T) (*interop.Interop, *test.Hook, *viper.Viper) {
	t.Helper()

	dir := t.TempDir()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	v := viper.New()
	v.Set("mappingFile", writeFile(t, dir, "mapping.yml", testMapping))
	v.Set("defaultUsername", "rundeck")
	v.Set("provider.type", "sqlite")
	v.Set("provider.path", createSnapshot(t, dir))

	return &interop.Interop{Config: v, Logger: logger}, hook, v
}

func warnings(hook *test.Hook) []string {
	msgs := []string{}
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

func TestSync(t *testing.T) {
	i, hook, _ := testInterop(t)

	s, err := New(i)
	require.NoError(t, err)

	var buf bytes.Buffer
	s.out = &buf

	result, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.TotalRecords)
	assert.Equal(t, 2, result.Converted)
	assert.Equal(t, 1, result.Skipped)
	assert.Nil(t, result.LastSync)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "db01", result.Entries[0].Nodename)
	assert.Equal(t, "web01", result.Entries[1].Nodename)

	var doc map[string]map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, map[string]map[string]string{
		"db01": {
			"hostname": "10.0.0.3",
			"nodename": "db01",
			"username": "rundeck",
			"osName":   "Ubuntu",
			"tags":     "role::db",
		},
		"web01": {
			"hostname": "10.0.0.1",
			"nodename": "web01",
			"username": "rundeck",
			"osName":   "CentOS",
			"cpus":     "8",
			"tags":     "profile::base,role::web",
		},
	}, doc)

	assert.Equal(t, []string{
		"skipping record lost.example.com: no hostname could be resolved",
	}, warnings(hook))
}

func TestSyncToFile(t *testing.T) {
	i, _, v := testInterop(t)

	fileName := filepath.Join(t.TempDir(), "resources.yml")
	v.Set("output.format", "yaml")
	v.Set("output.fileName", fileName)

	s, err := New(i)
	require.NoError(t, err)

	_, err = s.Sync(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(fileName)
	require.NoError(t, err)

	var doc map[string]map[string]string
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Len(t, doc, 2)
	assert.Equal(t, "10.0.0.1", doc["web01"]["hostname"])
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(v *viper.Viper)
		err    string
	}{
		{
			name:   "missing mapping file",
			modify: func(v *viper.Viper) { v.Set("mappingFile", "") },
			err:    "missing mappingFile in config",
		},
		{
			name:   "bad workers",
			modify: func(v *viper.Viper) { v.Set("workers", 0) },
			err:    "workers must be at least 1, got 0",
		},
		{
			name:   "bad format",
			modify: func(v *viper.Viper) { v.Set("output.format", "xml") },
			err:    "invalid output format: xml",
		},
		{
			name:   "events without client",
			modify: func(v *viper.Viper) { v.Set("events.enabled", true) },
			err:    "events are enabled but no New Relic API key is configured",
		},
		{
			name:   "bad provider",
			modify: func(v *viper.Viper) { v.Set("provider.type", "nope") },
			err:    "invalid provider: nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, _, v := testInterop(t)
			tt.modify(v)

			_, err := New(i)
			assert.EqualError(t, err, tt.err)
		})
	}
}

func TestNewBadMapping(t *testing.T) {
	i, _, v := testInterop(t)
	v.Set("mappingFile", writeFile(t, t.TempDir(), "bad.yml", "hostname: a\nhostname: b\n"))

	_, err := New(i)
	require.Error(t, err)

	var loadErr *mapper.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func numberedRecords(n int) []inventory.Record {
	records := make([]inventory.Record, n)
	for idx := range records {
		records[idx] = inventory.Record{Certname: fmt.Sprintf("node%03d", idx)}
	}
	return records
}

func TestMapRecordsKeepsOrder(t *testing.T) {
	logger, hook := test.NewNullLogger()

	records := numberedRecords(50)
	records[10].Certname = ""
	records[20].Certname = ""

	entries, skipped, err := MapRecords(
		context.Background(),
		logger,
		mapper.New(),
		nil,
		records,
		3,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, entries, 48)

	want := []string{}
	for _, r := range records {
		if r.Certname != "" {
			want = append(want, r.Certname)
		}
	}

	got := []string{}
	for _, e := range entries {
		got = append(got, e.Hostname)
	}

	assert.Equal(t, want, got)
	assert.Len(t, warnings(hook), 2)
}

func TestMapRecordsCancelled(t *testing.T) {
	logger, _ := test.NewNullLogger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries, skipped, err := MapRecords(ctx, logger, mapper.New(), nil, numberedRecords(10), 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, entries)
	assert.Zero(t, skipped)
}

func TestDedupe(t *testing.T) {
	logger, hook := test.NewNullLogger()

	entries := dedupe(logger, []inventory.NodeEntry{
		{Hostname: "10.0.0.1", Nodename: "web01"},
		{Hostname: "10.0.0.2", Nodename: "web02"},
		{Hostname: "10.0.0.3", Nodename: "web01"},
	})

	assert.Equal(t, []inventory.NodeEntry{
		{Hostname: "10.0.0.3", Nodename: "web01"},
		{Hostname: "10.0.0.2", Nodename: "web02"},
	}, entries)
	assert.Equal(t, []string{"duplicate node name web01, keeping the later entry"}, warnings(hook))
}

type failingProvider struct{}

func (failingProvider) GetRecords(ctx context.Context) ([]inventory.Record, error) {
	return nil, errors.New("inventory unavailable")
}
