package interop

import (
	"fmt"
	"os"
	"time"

	"github.com/newrelic/go-agent/v3/integrations/logcontext-v2/nrlogrus"
	"github.com/newrelic/go-agent/v3/newrelic"
	nrclient "github.com/newrelic/newrelic-client-go/newrelic"
	"github.com/newrelic/nr-cmdb-node-source/pkg/nerdgraph"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const appName = "New Relic CMDB Node Source"

type Interop struct {
	App       *newrelic.Application
	ApiKey    string
	ApiURL    string
	Config    *viper.Viper
	Logger    *log.Logger
	Nerdgraph *nerdgraph.NerdgraphClient
	NrClient  *nrclient.NewRelic
}

// NewInteroperability reads the configuration and sets up logging and the
// New Relic clients. When configFile is empty, config.{yml,yaml,json} is
// searched in ./configs and the working directory.
func NewInteroperability(configFile string) (*Interop, error) {
	licenseKey := os.Getenv("NEW_RELIC_LICENSE_KEY")

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(appName),
		newrelic.ConfigLicense(licenseKey),
		newrelic.ConfigEnabled(licenseKey != ""),
	)
	if err != nil {
		return nil, err
	}

	logger := log.New()

	logger.SetLevel(log.WarnLevel)
	logger.SetFormatter(nrlogrus.NewFormatter(app, &log.TextFormatter{}))

	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}

	err = v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	setupLogging(v, logger)

	apiKey := v.GetString("apiKey")
	if apiKey == "" {
		apiKey = os.Getenv("NEW_RELIC_API_KEY")
	}

	apiUrl := v.GetString("apiUrl")
	if apiUrl == "" {
		apiUrl = os.Getenv("NEW_RELIC_API_URL")
		if apiUrl == "" {
			apiUrl = "https://api.newrelic.com"
		}
	}

	i := &Interop{
		App:       app,
		ApiKey:    apiKey,
		ApiURL:    apiUrl,
		Config:    v,
		Logger:    logger,
		Nerdgraph: nerdgraph.NewNerdgraphClient(apiUrl, apiKey, logger),
	}

	if apiKey != "" {
		insertKey := v.GetString("insertKey")
		if insertKey == "" {
			insertKey = os.Getenv("NEW_RELIC_INSERT_KEY")
		}

		opts := []nrclient.ConfigOption{
			nrclient.ConfigPersonalAPIKey(apiKey),
			nrclient.ConfigInsightsInsertKey(insertKey),
		}

		if region := v.GetString("region"); region != "" {
			opts = append(opts, nrclient.ConfigRegion(region))
		}

		nrClient, err := nrclient.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create New Relic client: %w", err)
		}

		i.NrClient = nrClient
	}

	return i, nil
}

// RequireApiKey fails when no New Relic API key is configured.
func (i *Interop) RequireApiKey() error {
	if i.ApiKey == "" {
		return fmt.Errorf("missing New Relic API key")
	}

	return nil
}

func (i *Interop) Shutdown() {
	if i.App != nil {
		i.App.Shutdown(time.Second * 3)
	}
}

func setupLogging(v *viper.Viper, logger *log.Logger) {
	logLevel := v.GetString("log.level")
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			log.Infof("failed to parse log level, default will be used: %s", err)
		} else {
			logger.SetLevel(level)
		}
	}

	if v.IsSet("log.fileName") {
		file, err := os.OpenFile(
			v.GetString("log.fileName"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0666,
		)
		if err != nil {
			log.Infof("failed to log to file, using default stderr: %s", err)
		} else {
			logger.Out = file
		}
	}
}
