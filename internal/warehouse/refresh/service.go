package refresh

import (
	"context"
	"fmt"
	"sync"

	"github.com/vuminh/adsboard-backend/internal/meta"
	pkgerrors "github.com/vuminh/adsboard-backend/pkg/errors"
	"github.com/vuminh/adsboard-backend/pkg/logger"
	"github.com/vuminh/adsboard-backend/pkg/metrics"
)

// Service exposes refresh triggering and status. Triggers return as soon as
// the guard is acquired; the pipeline itself runs detached so HTTP callers
// are never held for the duration of a multi-day load.
type Service struct {
	guard   *Guard
	orch    *Orchestrator
	logger  *logger.Logger
	metrics *metrics.RefreshMetrics

	wg sync.WaitGroup
}

func NewService(guard *Guard, orch *Orchestrator, logg *logger.Logger, m *metrics.RefreshMetrics) *Service {
	return &Service{guard: guard, orch: orch, logger: logg, metrics: m}
}

func validWarehouse(warehouse string) bool {
	return warehouse == WarehouseAds || warehouse == WarehouseFanpage
}

// Trigger starts a refresh of the named warehouse over the given window.
// It returns a busy error when a refresh for that warehouse is already
// running anywhere.
func (s *Service) Trigger(ctx context.Context, warehouse string, ts meta.TimeSpec) error {
	if !validWarehouse(warehouse) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown warehouse %q", warehouse))
	}

	acquired, err := s.guard.TryBegin(ctx, warehouse)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquiring refresh guard")
	}
	if !acquired {
		return pkgerrors.New(pkgerrors.CodeBusy, fmt.Sprintf("a %s refresh is already running", warehouse))
	}

	// detached from the request context: the run outlives the HTTP call
	runCtx := context.Background()
	if s.logger != nil {
		runCtx = s.logger.WithWarehouse(runCtx, warehouse)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.run(runCtx, warehouse, ts)
	}()
	return nil
}

func (s *Service) run(ctx context.Context, warehouse string, ts meta.TimeSpec) error {
	started := s.orch.now()
	defer func() {
		s.metrics.ObserveDuration(warehouse, s.orch.now().Sub(started))
		if err := s.guard.End(ctx, warehouse); err != nil && s.logger != nil {
			s.logger.Error(ctx, "releasing refresh guard failed", err)
		}
	}()

	var err error
	switch warehouse {
	case WarehouseAds:
		err = s.orch.RunAds(ctx, ts)
	case WarehouseFanpage:
		err = s.orch.RunFanpages(ctx, ts)
	}

	if err != nil {
		s.metrics.IncFailure(warehouse)
		if s.logger != nil {
			s.logger.Error(ctx, "refresh aborted", err)
		}
		return err
	}
	s.metrics.IncSuccess(warehouse)
	if s.logger != nil {
		s.logger.Info(ctx, "refresh completed")
	}
	return nil
}

// Status reads the current guard state for one warehouse.
func (s *Service) Status(ctx context.Context, warehouse string) (Status, error) {
	if !validWarehouse(warehouse) {
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown warehouse %q", warehouse))
	}
	status, err := s.guard.Current(ctx, warehouse)
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading refresh status")
	}
	return status, nil
}

// RunBlocking executes one refresh synchronously, for the batch loader.
func (s *Service) RunBlocking(ctx context.Context, warehouse string, ts meta.TimeSpec) error {
	if !validWarehouse(warehouse) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown warehouse %q", warehouse))
	}
	acquired, err := s.guard.TryBegin(ctx, warehouse)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquiring refresh guard")
	}
	if !acquired {
		return pkgerrors.New(pkgerrors.CodeBusy, fmt.Sprintf("a %s refresh is already running", warehouse))
	}
	return s.run(ctx, warehouse, ts)
}

// Wait blocks until all in-flight detached refreshes finish.
func (s *Service) Wait() {
	s.wg.Wait()
}
