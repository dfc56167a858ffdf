package sync

import (
	"context"
	"fmt"
	"time"

	nrclient "github.com/newrelic/newrelic-client-go/newrelic"
	"github.com/newrelic/newrelic-client-go/pkg/nrdb"
)

const (
	actionSyncStart = "sync_start"
	actionSyncEnd   = "sync_end"
	actionSyncError = "sync_error"
)

type auditEvent map[string]interface{}

// auditSink stores audit events and answers NRQL queries over them.
type auditSink interface {
	Start(ctx context.Context, accountId int) error
	Enqueue(ctx context.Context, event auditEvent) error
	Flush() error
	Query(accountId int, nrql string) ([]map[string]interface{}, error)
}

type nrAuditSink struct {
	client *nrclient.NewRelic
}

func (n *nrAuditSink) Start(ctx context.Context, accountId int) error {
	return n.client.Events.BatchMode(ctx, accountId)
}

func (n *nrAuditSink) Enqueue(ctx context.Context, event auditEvent) error {
	return n.client.Events.EnqueueEvent(ctx, event)
}

func (n *nrAuditSink) Flush() error {
	return n.client.Events.Flush()
}

func (n *nrAuditSink) Query(accountId int, nrql string) ([]map[string]interface{}, error) {
	result, err := n.client.Nrdb.Query(accountId, nrdb.NRQL(nrql))
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, 0, len(result.Results))
	for _, r := range result.Results {
		rows = append(rows, r)
	}

	return rows, nil
}

func (s *Syncer) newAuditEvent(
	runID string,
	action string,
	result *Result,
	err error,
) auditEvent {
	event := auditEvent{}

	event["eventType"] = s.eventsConfig.EventType
	event["id"] = runID
	event["action"] = action
	event["provider"] = s.providerType
	event["error"] = err != nil
	if err != nil {
		event["errorMessage"] = err.Error()
	}

	if result != nil {
		event["totalRecords"] = result.TotalRecords
		event["converted"] = result.Converted
		event["skipped"] = result.Skipped

		if result.LastSync != nil {
			event["lastSync"] = result.LastSync.UnixMilli()
		}
	}

	return event
}

func (s *Syncer) startEvents(ctx context.Context) {
	if !s.eventsConfig.Enabled {
		return
	}

	if err := s.events.Start(ctx, s.eventsConfig.AccountId); err != nil {
		s.log.Warnf("failed to start event batching, events disabled: %s", err)
		s.eventsConfig.Enabled = false
	}
}

func (s *Syncer) pushEvent(ctx context.Context, event auditEvent) {
	if !s.eventsConfig.Enabled {
		return
	}

	if err := s.events.Enqueue(ctx, event); err != nil {
		s.log.Warnf("failed to push event: %s", err)
	}
}

func (s *Syncer) flushEvents() {
	if !s.eventsConfig.Enabled {
		return
	}

	if err := s.events.Flush(); err != nil {
		s.log.Warnf("failed to flush events: %s", err)
	}
}

// getLastSyncTimestamp returns the time of the last successful run recorded
// in the audit events, or nil when none is found.
func (s *Syncer) getLastSyncTimestamp() (*time.Time, error) {
	if !s.eventsConfig.Enabled {
		return nil, nil
	}

	s.log.Tracef(
		"querying for latest timestamp for event %s",
		s.eventsConfig.EventType,
	)

	rows, err := s.events.Query(
		s.eventsConfig.AccountId,
		fmt.Sprintf(
			"SELECT latest(timestamp) FROM %s WHERE action = '%s' SINCE 1 MONTH AGO",
			s.eventsConfig.EventType,
			actionSyncEnd,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("query for last sync failed: %w", err)
	}

	if len(rows) == 0 {
		s.log.Debug("no results found searching for last sync timestamp")
		return nil, nil
	}

	val, ok := rows[0]["latest.timestamp"]
	if !ok {
		s.log.Debug("no timestamp attribute found in result")
		return nil, nil
	}

	latestTimestamp, ok := val.(float64)
	if !ok {
		s.log.Debug("timestamp attribute found in result is not a number")
		return nil, nil
	}

	t := time.UnixMilli(int64(latestTimestamp))

	return &t, nil
}
