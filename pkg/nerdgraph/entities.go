package nerdgraph

import "context"

type entitySearchResults struct {
	Entities   []EntityOutline
	NextCursor string
}

// GetEntities runs an entity search and follows the result cursor until all
// pages are read.
func (c *NerdgraphClient) GetEntities(
	ctx context.Context,
	entityQuery *EntityQuery,
) ([]EntityOutline, error) {
	var entities []EntityOutline

	query := buildQuery(entityQuery)
	nextCursor := ""

	if c.Logger != nil {
		c.Logger.Debugf("running entity search for query: \"%s\"", query)
	}

	for done := false; !done; {
		var results entitySearchResults

		if nextCursor != "" {
			var gql struct {
				Actor struct {
					EntitySearch struct {
						Count   int
						Results entitySearchResults `graphql:"results(cursor: $c)"`
					} `graphql:"entitySearch(query: $q)"`
				}
			}

			variables := map[string]interface{}{
				"q": query,
				"c": nextCursor,
			}

			err := c.Query(ctx, &gql, variables)
			if err != nil {
				return nil, err
			}

			results = gql.Actor.EntitySearch.Results
		} else {
			var gql struct {
				Actor struct {
					EntitySearch struct {
						Count   int
						Results entitySearchResults
					} `graphql:"entitySearch(query: $q)"`
				}
			}

			variables := map[string]interface{}{
				"q": query,
			}

			err := c.Query(ctx, &gql, variables)
			if err != nil {
				return nil, err
			}

			results = gql.Actor.EntitySearch.Results
		}

		entities = append(entities, results.Entities...)
		nextCursor = results.NextCursor
		done = (nextCursor == "")

		if c.Logger != nil {
			c.Logger.Tracef("read %d entities, next cursor: %q", len(results.Entities), nextCursor)
		}
	}

	return entities, nil
}
