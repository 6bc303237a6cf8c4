package gateway_log

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObserveCall(t *testing.T) {
	repo := repository.NewMemoryStore()
	s := New(repo, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(logctx.WithTraceID(context.Background(), "trace-1"))
	s.ObserveCall(ctx, &types.GatewayCall{
		Provider:      "nmi",
		Operation:     "sale",
		OrderRef:      "ORD-1",
		TransactionID: "TXN1",
		Request:       map[string]string{"amount": "10.00"},
		Response:      map[string]string{"response": "1"},
		Duration:      150 * time.Millisecond,
	})
	s.ObserveCall(ctx, &types.GatewayCall{Provider: "nmi", Operation: "query", Err: errors.New("timeout")})
	s.ObserveCall(ctx, nil)
	cancel()
	s.Wait()

	logs := repo.GatewayCallLogs()
	require.Len(t, logs, 2)
	byOp := map[string]models.GatewayCallLog{}
	for _, l := range logs {
		byOp[l.Operation] = l
	}

	sale := byOp["sale"]
	require.Equal(t, models.GatewayCallLogStatusSucceeded, sale.Status)
	require.Equal(t, "trace-1", sale.TraceID)
	require.Equal(t, int64(150), sale.DurationMs)
	var req map[string]string
	require.NoError(t, json.Unmarshal(sale.Request, &req))
	require.Equal(t, "10.00", req["amount"])

	query := byOp["query"]
	require.Equal(t, models.GatewayCallLogStatusFailed, query.Status)
	require.NotNil(t, query.Result)
	require.Contains(t, string(*query.Result), "timeout")
}
