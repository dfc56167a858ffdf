package nerdgraph

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hasura/go-graphql-client"
	log "github.com/sirupsen/logrus"
)

type NerdgraphClient struct {
	ApiURL     string
	ApiKey     string
	Logger     *log.Logger
	HTTPClient *http.Client
}

func NewNerdgraphClient(
	apiUrl string,
	apiKey string,
	log *log.Logger,
) *NerdgraphClient {
	return &NerdgraphClient{ApiURL: apiUrl, ApiKey: apiKey, Logger: log}
}

type Tag struct {
	Key    string
	Values []string
}

type EntityQuery struct {
	Type      []string
	Domain    []string
	Name      string
	AccountId int
	Tags      []Tag
	Query     string
}

type EntityOutline struct {
	Guid          string
	Name          string
	AccountId     int
	Domain        string
	Type          string
	AlertSeverity string
	Permalink     string
	Reporting     bool
	Tags          []Tag
}

func (c *NerdgraphClient) Query(
	ctx context.Context,
	gql interface{},
	variables map[string]interface{},
) error {
	client := c.newClient()

	err := client.Query(ctx, gql, variables)
	if err != nil {
		return err
	}

	return nil
}

func (c *NerdgraphClient) newClient() *graphql.Client {
	url := fmt.Sprintf("%s/graphql", strings.TrimSuffix(c.ApiURL, "/"))

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return graphql.NewClient(url, httpClient).WithRequestModifier(
		func(req *http.Request) {
			req.Method = "POST"
			req.Header.Add("Accept", "application/json")
			req.Header.Add("Content-Type", "application/json")
			req.Header.Add("Api-Key", c.ApiKey)
		},
	)
}

// buildQuery turns the entity filters into an entity search query. A raw
// query is used as is; filter values are quoted.
func buildQuery(entityQuery *EntityQuery) string {
	if entityQuery.Query != "" {
		return entityQuery.Query
	}

	var parts []string

	if len(entityQuery.Domain) > 0 {
		parts = append(parts, fmt.Sprintf("domain IN (%s)", quoteList(entityQuery.Domain)))
	}

	if len(entityQuery.Type) > 0 {
		parts = append(parts, fmt.Sprintf("type IN (%s)", quoteList(entityQuery.Type)))
	}

	if entityQuery.Name != "" {
		parts = append(parts, fmt.Sprintf("name LIKE %s", quote(entityQuery.Name)))
	}

	if entityQuery.AccountId != 0 {
		parts = append(parts, fmt.Sprintf("tags.`accountId` = %d", entityQuery.AccountId))
	}

	for _, tag := range entityQuery.Tags {
		parts = append(
			parts,
			fmt.Sprintf(
				"tags.`%s` IN (%s)",
				strings.ReplaceAll(tag.Key, "`", ""),
				quoteList(tag.Values),
			),
		)
	}

	return strings.Join(parts, " AND ")
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}

	return strings.Join(quoted, ",")
}
