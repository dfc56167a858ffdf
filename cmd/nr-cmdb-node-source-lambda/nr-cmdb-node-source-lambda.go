package main

import (
	"context"
	"fmt"
	"time"

	_ "github.com/newrelic/nr-cmdb-node-source/internal/provider/newrelic"
	_ "github.com/newrelic/nr-cmdb-node-source/internal/provider/puppetdb"
	_ "github.com/newrelic/nr-cmdb-node-source/internal/provider/sqlite"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/newrelic/nr-cmdb-node-source/internal/sync"
	"github.com/newrelic/nr-cmdb-node-source/pkg/interop"
)

type NodeSyncResult struct {
	Success   bool
	Message   string
	RunID     string
	Converted int
	Skipped   int
	LastSync  *time.Time `json:",omitempty"`
}

func HandleRequest(ctx context.Context) (NodeSyncResult, error) {
	i, err := interop.NewInteroperability("")
	if err != nil {
		retErr := fmt.Errorf("failed to create interop: %w", err)
		return NodeSyncResult{Message: retErr.Error()}, retErr
	}

	defer i.Shutdown()

	syncer, err := sync.New(i)
	if err != nil {
		retErr := fmt.Errorf("sync failed: %w", err)
		return NodeSyncResult{Message: retErr.Error()}, retErr
	}

	result, err := syncer.Sync(ctx)
	if err != nil {
		retErr := fmt.Errorf("sync failed: %w", err)
		return NodeSyncResult{Message: retErr.Error(), RunID: result.RunID}, retErr
	}

	return NodeSyncResult{
		Success:   true,
		RunID:     result.RunID,
		Converted: result.Converted,
		Skipped:   result.Skipped,
		LastSync:  result.LastSync,
	}, nil
}

func main() {
	lambda.Start(HandleRequest)
}
