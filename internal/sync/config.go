package sync

import (
	"time"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
)

const (
	defaultWorkers   = 4
	defaultEventType = "CmdbNodeSync"
)

type OutputConfig struct {
	Format   string
	FileName string
}

type eventsConfig struct {
	Enabled   bool
	AccountId int
	EventType string
}

// Result summarizes one sync run.
type Result struct {
	RunID        string
	TotalRecords int
	Converted    int
	Skipped      int
	LastSync     *time.Time
	Entries      []inventory.NodeEntry
}
