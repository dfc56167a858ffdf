package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofrs/uuid"
	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"github.com/newrelic/nr-cmdb-node-source/internal/mapper"
	"github.com/newrelic/nr-cmdb-node-source/internal/output"
	"github.com/newrelic/nr-cmdb-node-source/internal/provider"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

type Syncer struct {
	i            *interop.Interop
	log          *log.Logger
	provider     provider.Provider
	providerType string
	mapping      *mapper.Mapping
	mapper       *mapper.Mapper
	workers      int
	format       output.Format
	outputConfig OutputConfig
	eventsConfig eventsConfig
	events       auditSink
	out          io.Writer
}

// New builds a Syncer from the interop configuration. Configuration
// problems, including an unreadable mapping file, are reported here rather
// than during a run.
func New(i *interop.Interop) (*Syncer, error) {
	v := i.Config

	mappingFile := v.GetString("mappingFile")
	if mappingFile == "" {
		return nil, fmt.Errorf("missing mappingFile in config")
	}

	i.Logger.Debugf("loading mapping from %s", mappingFile)

	mapping, err := mapper.LoadFile(mappingFile)
	if err != nil {
		return nil, err
	}

	workers := defaultWorkers
	if v.IsSet("workers") {
		workers, err = cast.ToIntE(v.Get("workers"))
		if err != nil {
			return nil, fmt.Errorf("invalid workers value: %w", err)
		}
		if workers < 1 {
			return nil, fmt.Errorf("workers must be at least 1, got %d", workers)
		}
	}

	outputConfig := OutputConfig{}
	if err := v.UnmarshalKey("output", &outputConfig); err != nil {
		return nil, fmt.Errorf("invalid output config: %w", err)
	}

	format, err := output.ParseFormat(outputConfig.Format)
	if err != nil {
		return nil, err
	}

	eventsConfig := eventsConfig{}
	if err := v.UnmarshalKey("events", &eventsConfig); err != nil {
		return nil, fmt.Errorf("invalid events config: %w", err)
	}

	if eventsConfig.Enabled {
		if i.NrClient == nil {
			return nil, fmt.Errorf("events are enabled but no New Relic API key is configured")
		}

		if eventsConfig.AccountId <= 0 {
			return nil, fmt.Errorf("events are enabled but events.accountId is missing")
		}

		if eventsConfig.EventType == "" {
			eventsConfig.EventType = defaultEventType
		}
	}

	p, err := provider.GetProvider(i)
	if err != nil {
		return nil, err
	}

	var opts []mapper.Option
	if username := v.GetString("defaultUsername"); username != "" {
		opts = append(opts, mapper.WithDefaultUsername(username))
	}

	var events auditSink
	if eventsConfig.Enabled {
		events = &nrAuditSink{client: i.NrClient}
	}

	return &Syncer{
		i:            i,
		log:          i.Logger,
		provider:     p,
		providerType: v.GetString("provider.type"),
		mapping:      mapping,
		mapper:       mapper.New(opts...),
		workers:      workers,
		format:       format,
		outputConfig: outputConfig,
		eventsConfig: eventsConfig,
		events:       events,
		out:          os.Stdout,
	}, nil
}

// Sync reads all records from the provider, converts them and writes the
// resource document. Audit events are still recorded when ctx is cancelled.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return &Result{}, fmt.Errorf("failed to create run id: %w", err)
	}

	result := &Result{RunID: id.String()}

	ectx := context.WithoutCancel(ctx)

	s.startEvents(ectx)
	defer s.flushEvents()

	lastSync, err := s.getLastSyncTimestamp()
	if err != nil {
		s.log.Warnf("could not read last sync time: %s", err)
	} else if lastSync != nil {
		s.log.Debugf("last successful sync at %s", lastSync.Format(time.RFC3339))
		result.LastSync = lastSync
	}

	s.pushEvent(ectx, s.newAuditEvent(result.RunID, actionSyncStart, nil, nil))

	err = s.sync(ctx, result)
	if err != nil {
		s.pushEvent(ectx, s.newAuditEvent(result.RunID, actionSyncError, result, err))
		return result, err
	}

	s.pushEvent(ectx, s.newAuditEvent(result.RunID, actionSyncEnd, result, nil))

	return result, nil
}

func (s *Syncer) sync(ctx context.Context, result *Result) error {
	s.log.Debugf("reading records from provider %s", s.providerType)

	records, err := s.provider.GetRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}

	result.TotalRecords = len(records)
	s.log.Debugf("read %d records from provider", len(records))

	entries, skipped, err := MapRecords(
		ctx,
		s.log,
		s.mapper,
		s.mapping,
		records,
		s.workers,
	)
	result.Skipped = skipped
	if err != nil {
		return err
	}

	result.Entries = dedupe(s.log, entries)
	result.Converted = len(result.Entries)

	s.log.Debugf(
		"converted %d of %d records, %d skipped",
		result.Converted,
		result.TotalRecords,
		result.Skipped,
	)

	return s.write(result.Entries)
}

func (s *Syncer) write(entries []inventory.NodeEntry) error {
	if s.outputConfig.FileName == "" {
		return output.Write(s.out, s.format, entries)
	}

	s.log.Debugf("writing %d nodes to %s", len(entries), s.outputConfig.FileName)

	f, err := os.Create(s.outputConfig.FileName)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := output.Write(f, s.format, entries); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// MapRecords applies mapping to every record using at most workers
// goroutines. Entries keep the order of their records. Records that cannot
// be converted are logged and counted as skipped. When ctx is cancelled no
// further records are started and the entries converted so far are returned
// along with the context error.
func MapRecords(
	ctx context.Context,
	logger *log.Logger,
	m *mapper.Mapper,
	mapping *mapper.Mapping,
	records []inventory.Record,
	workers int,
) ([]inventory.NodeEntry, int, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]*inventory.NodeEntry, len(records))
	done := make([]bool, len(records))

	g := &errgroup.Group{}
	g.SetLimit(workers)

	for idx := range records {
		if ctx.Err() != nil {
			break
		}

		idx := idx // per-iteration copy (go.mod targets go 1.21 loop semantics)

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			record := &records[idx]

			entry, ok := m.Apply(record, mapping)
			if !ok {
				logger.Warnf(
					"skipping record %s: no hostname could be resolved",
					record.Certname,
				)
			} else if logger.IsLevelEnabled(log.TraceLevel) {
				logger.Tracef("record %s mapped to %s", record.Certname, spew.Sdump(entry))
			}

			results[idx] = entry
			done[idx] = true

			return nil
		})
	}

	_ = g.Wait()

	entries := make([]inventory.NodeEntry, 0, len(records))
	skipped := 0

	for idx, entry := range results {
		if entry != nil {
			entries = append(entries, *entry)
		} else if done[idx] {
			skipped++
		}
	}

	return entries, skipped, ctx.Err()
}

// dedupe keeps one entry per node name. A later entry replaces an earlier
// one in place.
func dedupe(logger *log.Logger, entries []inventory.NodeEntry) []inventory.NodeEntry {
	index := make(map[string]int, len(entries))
	out := make([]inventory.NodeEntry, 0, len(entries))

	for _, e := range entries {
		name := e.Name()

		if pos, ok := index[name]; ok {
			logger.Warnf("duplicate node name %s, keeping the later entry", name)
			out[pos] = e
			continue
		}

		index[name] = len(out)
		out = append(out, e)
	}

	return out
}
