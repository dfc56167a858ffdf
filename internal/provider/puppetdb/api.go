package puppetdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const (
	inventoryEndpoint = "/pdb/query/v4/inventory"
	classesEndpoint   = "/pdb/query/v4/resources/Class"
)

type inventoryItem struct {
	Certname    string                 `json:"certname"`
	Environment string                 `json:"environment"`
	Facts       map[string]interface{} `json:"facts"`
	Trusted     map[string]interface{} `json:"trusted"`
}

type classResource struct {
	Certname string `json:"certname"`
	Title    string `json:"title"`
}

func (p *PuppetDBProvider) getPaginatedResults(
	ctx context.Context,
	endpoint string,
	params url.Values,
	offset int,
	result interface{},
) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}

	q.Set("limit", strconv.Itoa(p.PageSize))
	q.Set("offset", strconv.Itoa(offset))

	u := fmt.Sprintf("%s%s?%s", p.ApiURL, endpoint, q.Encode())

	p.Interop.Logger.Debugf("making puppetdb request using URL %s...", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	req.Header.Add("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch results failed: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	p.Interop.Logger.Debugf("read %d bytes, unmarshaling JSON...", len(body))

	return json.Unmarshal(body, result)
}

func (p *PuppetDBProvider) getInventory(ctx context.Context) ([]inventoryItem, error) {
	var results []inventoryItem

	params := url.Values{}
	params.Set("order_by", `[{"field":"certname"}]`)
	if p.Query != "" {
		params.Set("query", p.Query)
	}

	for offset := 0; ; {
		var page []inventoryItem

		err := p.getPaginatedResults(ctx, inventoryEndpoint, params, offset, &page)
		if err != nil {
			return nil, err
		}

		results = append(results, page...)

		if len(page) < p.PageSize {
			break
		}

		offset += len(page)
	}

	return results, nil
}

func (p *PuppetDBProvider) getClasses(ctx context.Context) (map[string][]string, error) {
	classes := map[string][]string{}

	params := url.Values{}
	params.Set("order_by", `[{"field":"certname"},{"field":"title"}]`)

	for offset := 0; ; {
		var page []classResource

		err := p.getPaginatedResults(ctx, classesEndpoint, params, offset, &page)
		if err != nil {
			return nil, err
		}

		for _, c := range page {
			if c.Certname == "" || c.Title == "" {
				continue
			}
			classes[c.Certname] = append(classes[c.Certname], c.Title)
		}

		if len(page) < p.PageSize {
			break
		}

		offset += len(page)
	}

	return classes, nil
}
