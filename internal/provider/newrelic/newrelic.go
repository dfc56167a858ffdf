package newrelic

import (
	"context"
	"fmt"
	"strconv"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"github.com/newrelic/nr-cmdb-node-source/internal/provider"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
	"github.com/newrelic/nr-cmdb-node-source/pkg/nerdgraph"
	"github.com/spf13/viper"
)

type entitySearcher interface {
	GetEntities(ctx context.Context, q *nerdgraph.EntityQuery) ([]nerdgraph.EntityOutline, error)
}

// EntityProvider treats New Relic entities as inventory records.
type EntityProvider struct {
	Interop     *interop.Interop
	EntityQuery nerdgraph.EntityQuery
	searcher    entitySearcher
}

func init() {
	provider.RegisterProvider("newrelic", New)
}

func New(i *interop.Interop, v *viper.Viper) (provider.Provider, error) {
	if err := i.RequireApiKey(); err != nil {
		return nil, err
	}

	entityQuery := nerdgraph.EntityQuery{
		Type:      v.GetStringSlice("type"),
		Domain:    v.GetStringSlice("domain"),
		Name:      v.GetString("name"),
		AccountId: v.GetInt("accountId"),
		Query:     v.GetString("query"),
	}

	if err := v.UnmarshalKey("tags", &entityQuery.Tags); err != nil {
		return nil, fmt.Errorf("invalid entity tag filter: %w", err)
	}

	if entityQuery.Query == "" &&
		len(entityQuery.Type) == 0 &&
		len(entityQuery.Domain) == 0 &&
		entityQuery.Name == "" &&
		entityQuery.AccountId == 0 &&
		len(entityQuery.Tags) == 0 {
		return nil, fmt.Errorf("missing entity query")
	}

	return &EntityProvider{
		Interop:     i,
		EntityQuery: entityQuery,
		searcher:    i.Nerdgraph,
	}, nil
}

func (p *EntityProvider) GetRecords(ctx context.Context) ([]inventory.Record, error) {
	entities, err := p.searcher.GetEntities(ctx, &p.EntityQuery)
	if err != nil {
		return nil, fmt.Errorf("graphql error fetching entities: %w", err)
	}

	records := make([]inventory.Record, 0, len(entities))

	for _, e := range entities {
		if e.Name == "" {
			p.Interop.Logger.Warnf("skipping entity %s with no name", e.Guid)
			continue
		}

		records = append(records, entityToRecord(&e))
	}

	p.Interop.Logger.Debugf("read %d records from New Relic", len(records))

	return records, nil
}

func entityToRecord(e *nerdgraph.EntityOutline) inventory.Record {
	tags := map[string]interface{}{}

	for _, tag := range e.Tags {
		switch len(tag.Values) {
		case 0:
			continue
		case 1:
			tags[tag.Key] = tag.Values[0]
		default:
			values := make([]interface{}, len(tag.Values))
			for i, v := range tag.Values {
				values[i] = v
			}
			tags[tag.Key] = values
		}
	}

	facts := map[string]interface{}{
		"guid":      e.Guid,
		"accountId": strconv.Itoa(e.AccountId),
		"domain":    e.Domain,
		"type":      e.Type,
		"reporting": e.Reporting,
		"tags":      tags,
	}

	if e.AlertSeverity != "" {
		facts["alertSeverity"] = e.AlertSeverity
	}

	if e.Permalink != "" {
		facts["permalink"] = e.Permalink
	}

	var classes []string
	if e.Domain != "" && e.Type != "" {
		classes = []string{e.Domain + "/" + e.Type}
	}

	return inventory.Record{
		Certname: e.Name,
		Facts:    facts,
		Classes:  classes,
	}
}
