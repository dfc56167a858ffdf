package puppetdb

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"github.com/newrelic/nr-cmdb-node-source/internal/provider"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
	"github.com/spf13/viper"
)

const (
	defaultPageSize = 1000
	defaultTimeout  = 60 * time.Second
)

type PuppetDBProvider struct {
	Interop  *interop.Interop
	ApiURL   string
	Query    string
	PageSize int
	Classes  bool
	Client   *http.Client
}

func init() {
	provider.RegisterProvider("puppetdb", New)
}

func New(i *interop.Interop, v *viper.Viper) (provider.Provider, error) {
	v.AutomaticEnv()
	v.SetEnvPrefix("NR_CMDB_PUPPETDB")

	apiUrl := strings.TrimSuffix(v.GetString("apiUrl"), "/")
	if apiUrl == "" {
		return nil, fmt.Errorf("missing puppetdb api url")
	}

	pageSize := v.GetInt("pageSize")
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	timeout := v.GetDuration("timeout")
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	classes := true
	if v.IsSet("classes") {
		classes = v.GetBool("classes")
	}

	return &PuppetDBProvider{
		Interop:  i,
		ApiURL:   apiUrl,
		Query:    v.GetString("query"),
		PageSize: pageSize,
		Classes:  classes,
		Client:   &http.Client{Timeout: timeout},
	}, nil
}

func (p *PuppetDBProvider) GetRecords(ctx context.Context) (
	[]inventory.Record,
	error,
) {
	items, err := p.getInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("get inventory failed: %w", err)
	}

	var classes map[string][]string

	if p.Classes {
		classes, err = p.getClasses(ctx)
		if err != nil {
			return nil, fmt.Errorf("get classes failed: %w", err)
		}
	}

	records := make([]inventory.Record, 0, len(items))

	for _, item := range items {
		if item.Certname == "" {
			p.Interop.Logger.Warn("skipping inventory entry with no certname")
			continue
		}

		facts := item.Facts
		if facts == nil {
			facts = map[string]interface{}{}
		}

		if _, ok := facts["trusted"]; !ok && item.Trusted != nil {
			facts["trusted"] = item.Trusted
		}

		if _, ok := facts["environment"]; !ok && item.Environment != "" {
			facts["environment"] = item.Environment
		}

		records = append(records, inventory.Record{
			Certname: item.Certname,
			Facts:    facts,
			Classes:  classes[item.Certname],
		})
	}

	p.Interop.Logger.Debugf(
		"read %d records from puppetdb (%d nodes with classes)",
		len(records),
		len(classes),
	)

	return records, nil
}
