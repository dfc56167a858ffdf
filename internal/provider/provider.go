package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newrelic/nr-cmdb-node-source/internal/inventory"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
	"github.com/spf13/viper"
)

// Provider fetches inventory records from an inventory system.
type Provider interface {
	GetRecords(ctx context.Context) ([]inventory.Record, error)
}

type InitFn func(*interop.Interop, *viper.Viper) (Provider, error)

var (
	initFns      map[string]InitFn
	providerLock sync.Mutex
)

// GetProvider creates the provider named by provider.type, passing it the
// provider config subtree.
func GetProvider(i *interop.Interop) (Provider, error) {
	v := i.Config

	if v == nil || !v.IsSet("provider") {
		return nil, fmt.Errorf("missing provider in config")
	}

	providerType := v.GetString("provider.type")
	if providerType == "" {
		return nil, fmt.Errorf("missing provider type")
	}

	i.Logger.Debugf("getting provider for type %s...", providerType)

	providerLock.Lock()
	fn, ok := initFns[providerType]
	providerLock.Unlock()

	if !ok {
		return nil, fmt.Errorf("invalid provider: %s", providerType)
	}

	sub := v.Sub("provider")
	if sub == nil {
		sub = viper.New()
	}

	i.Logger.Debugf("initializing provider...")
	return fn(i, sub)
}

func RegisterProvider(t string, initFn InitFn) {
	providerLock.Lock()
	defer providerLock.Unlock()

	if initFns == nil {
		initFns = make(map[string]InitFn)
	}

	initFns[t] = initFn
}

// Providers returns the registered provider types.
func Providers() []string {
	providerLock.Lock()
	defer providerLock.Unlock()

	types := make([]string, 0, len(initFns))
	for t := range initFns {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}
