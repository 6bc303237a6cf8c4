package gateway_log

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/models"
	"github.com/fatflowers/creator-cashier/pkg/logctx"
	"github.com/fatflowers/creator-cashier/pkg/tool"
	"github.com/fatflowers/creator-cashier/pkg/types"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Service struct {
	repo repository.Repository
	log  *zap.SugaredLogger
	wg   sync.WaitGroup
}

func New(repo repository.Repository, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log}
}

// ObserveCall asynchronously persists a gateway call. Nil input is ignored.
func (s *Service) ObserveCall(ctx context.Context, call *types.GatewayCall) {
	if call == nil {
		return
	}
	entry := toLog(call)
	entry.TraceID = logctx.TraceID(ctx)
	s.Save(ctx, entry)
}

// Save asynchronously persists a gateway call log.
func (s *Service) Save(ctx context.Context, entry *models.GatewayCallLog) {
	if entry == nil {
		return
	}
	// the request context usually ends before the write does
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if entry.ID == "" {
			entry.ID = tool.GenerateUUIDV7()
		}
		if err := s.repo.SaveGatewayCallLog(ctx, entry); err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save gateway call log: %v", err)
		}
	}()
}

// Wait blocks until pending writes finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func toLog(call *types.GatewayCall) *models.GatewayCallLog {
	entry := &models.GatewayCallLog{
		Provider:      call.Provider,
		Operation:     call.Operation,
		OrderRef:      call.OrderRef,
		TransactionID: call.TransactionID,
		Status:        models.GatewayCallLogStatusSucceeded,
		DurationMs:    call.Duration.Milliseconds(),
	}
	if b, err := json.Marshal(call.Request); err == nil {
		entry.Request = datatypes.JSON(b)
	}
	result := map[string]any{}
	for k, v := range call.Response {
		result[k] = v
	}
	if call.Err != nil {
		entry.Status = models.GatewayCallLogStatusFailed
		result["error"] = call.Err.Error()
	}
	if len(result) > 0 {
		if b, err := json.Marshal(result); err == nil {
			r := datatypes.JSON(b)
			entry.Result = &r
		}
	}
	return entry
}
