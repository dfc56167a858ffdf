package provider

import (
	"context"
	"testing"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	name string
}

func (p *staticProvider) GetRecords(ctx context.Context) ([]inventory.Record, error) {
	return []inventory.Record{{Certname: p.name}}, nil
}

func testInterop(v *viper.Viper) *interop.Interop {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(log.TraceLevel)

	return &interop.Interop{Config: v, Logger: logger}
}

func TestGetProvider(t *testing.T) {
	RegisterProvider("static-test", func(i *interop.Interop, v *viper.Viper) (Provider, error) {
		return &staticProvider{name: v.GetString("name")}, nil
	})

	v := viper.New()
	v.Set("provider.type", "static-test")
	v.Set("provider.name", "host01")

	p, err := GetProvider(testInterop(v))
	require.NoError(t, err)

	records, err := p.GetRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []inventory.Record{{Certname: "host01"}}, records)

	assert.Contains(t, Providers(), "static-test")
}

func TestGetProviderErrors(t *testing.T) {
	_, err := GetProvider(testInterop(viper.New()))
	assert.EqualError(t, err, "missing provider in config")

	v := viper.New()
	v.Set("provider.pageSize", 10)
	_, err = GetProvider(testInterop(v))
	assert.EqualError(t, err, "missing provider type")

	v = viper.New()
	v.Set("provider.type", "nope")
	_, err = GetProvider(testInterop(v))
	assert.EqualError(t, err, "invalid provider: nope")
}
