package inbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/statemachine"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/cardshellz/echelon/internal/infrastructure/logger"
	"github.com/cardshellz/echelon/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const spanService = "inbound_shipment"

// ProductInfo is the reference data shown next to a shipment line
type ProductInfo struct {
	ID          uuid.UUID
	SKU         string
	Description string
}

// ProductCatalog is the read-only product reference data port
type ProductCatalog interface {
	FindProduct(ctx context.Context, productID uuid.UUID) (*ProductInfo, error)
}

// ShipmentService handles inbound shipment operations, including landed-cost
// allocation and finalization.
type ShipmentService struct {
	shipmentRepo    inbound.InboundShipmentRepository
	orderRepo       trade.PurchaseOrderRepository
	locker          shared.EntityLocker
	logger          *zap.Logger
	catalog         ProductCatalog
	archive         inbound.SnapshotArchive
	businessMetrics *telemetry.BusinessMetrics
	clock           shared.Clock
}

// NewShipmentService creates a new ShipmentService
func NewShipmentService(
	shipmentRepo inbound.InboundShipmentRepository,
	orderRepo trade.PurchaseOrderRepository,
	locker shared.EntityLocker,
	log *zap.Logger,
) *ShipmentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShipmentService{
		shipmentRepo: shipmentRepo,
		orderRepo:    orderRepo,
		locker:       locker,
		logger:       log,
	}
}

// SetProductCatalog enables description and SKU lookup for packing-list lines
func (s *ShipmentService) SetProductCatalog(c ProductCatalog) {
	s.catalog = c
}

// SetSnapshotArchive sets the store finalized snapshots are read back from
func (s *ShipmentService) SetSnapshotArchive(a inbound.SnapshotArchive) {
	s.archive = a
}

// SetBusinessMetrics sets the business metrics collector
func (s *ShipmentService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// SetClock pins the time source for every shipment the service touches
func (s *ShipmentService) SetClock(c shared.Clock) {
	s.clock = c
}

// Create creates a draft shipment
func (s *ShipmentService) Create(ctx context.Context, req CreateShipmentRequest) (resp *ShipmentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "create")
	defer func() { endSpan(span, err) }()

	exists, err := s.shipmentRepo.ExistsByNumber(ctx, req.Number)
	if err != nil {
		return nil, fmt.Errorf("check shipment number: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("shipment %s already exists", req.Number))
	}
	cur, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	shipment, err := inbound.NewInboundShipment(inbound.NewShipmentInput{
		Number:   req.Number,
		Mode:     inbound.ShipmentMode(req.Mode),
		Currency: cur,
		Details:  req.ShipmentDetailsBody.toDomain(),
		Actor:    req.Actor,
		Clock:    s.clock,
	})
	if err != nil {
		return nil, err
	}
	if err := s.shipmentRepo.Create(ctx, shipment); err != nil {
		return nil, fmt.Errorf("create shipment %s: %w", shipment.Number, err)
	}

	logger.WithLogger(ctx, s.logger).Info("inbound shipment created",
		zap.String("shipment_id", shipment.ID.String()),
		zap.String("number", shipment.Number),
		zap.String("mode", string(shipment.Mode)),
	)
	response := ToShipmentResponse(shipment)
	return &response, nil
}

// GetByID retrieves a shipment with its lines, costs and available actions
func (s *ShipmentService) GetByID(ctx context.Context, shipmentID uuid.UUID) (*ShipmentResponse, error) {
	shipment, err := s.load(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	response := ToShipmentResponse(shipment)
	return &response, nil
}

// List retrieves shipments with filtering and pagination
func (s *ShipmentService) List(ctx context.Context, filter ShipmentListFilter) ([]ShipmentListItemResponse, int64, error) {
	domainFilter := inbound.ShipmentFilter{Filter: shared.DefaultFilter().
		WithPage(filter.Page, filter.PageSize).
		WithOrder(filter.OrderBy, filter.OrderDir)}
	domainFilter.Search = filter.Search
	if filter.Status != "" {
		status := inbound.ShipmentStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown status %q", filter.Status))
		}
		domainFilter.Status = &status
	}
	if filter.Mode != "" {
		mode := inbound.ShipmentMode(filter.Mode)
		if !mode.IsValid() {
			return nil, 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown mode %q", filter.Mode))
		}
		domainFilter.Mode = &mode
	}
	if filter.PurchaseOrderID != "" {
		poID, err := uuid.Parse(filter.PurchaseOrderID)
		if err != nil {
			return nil, 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid purchase_order_id %q", filter.PurchaseOrderID))
		}
		domainFilter.PurchaseOrderID = &poID
	}

	shipments, total, err := s.shipmentRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("list shipments: %w", err)
	}
	return ToShipmentListItemResponses(shipments), total, nil
}

// UpdateDetails replaces the editable header fields
func (s *ShipmentService) UpdateDetails(ctx context.Context, shipmentID uuid.UUID, req UpdateShipmentDetailsRequest) (*ShipmentResponse, error) {
	return s.respond(s.mutate(ctx, "update_details", shipmentID, req.ExpectedVersion, func(sh *inbound.InboundShipment) error {
		return sh.UpdateDetails(req.ShipmentDetailsBody.toDomain(), req.Actor, 0)
	}))
}

// AddLine adds a line from a PO line or from a packing list. For PO lines the
// open quantity is the PO line's open quantity less what this shipment
// already carries for it; exceeding it yields a warning, not an error.
func (s *ShipmentService) AddLine(ctx context.Context, shipmentID uuid.UUID, req AddLineRequest) (*AddLineResponse, error) {
	if req.FromPO() {
		return s.addLineFromPO(ctx, shipmentID, req)
	}
	return s.addPackingListLine(ctx, shipmentID, req)
}

func (s *ShipmentService) addLineFromPO(ctx context.Context, shipmentID uuid.UUID, req AddLineRequest) (*AddLineResponse, error) {
	if req.PurchaseOrderID == nil || req.PurchaseOrderLineID == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "purchase_order_id and purchase_order_line_id are both required")
	}
	order, err := s.orderRepo.FindByID(ctx, *req.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.AcceptsReceipts() {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("purchase order %s in %s status cannot be shipped against", order.Number, order.Status))
	}
	poLine := order.Line(*req.PurchaseOrderLineID)
	if poLine == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "purchase order line not found")
	}

	var (
		lineID  uuid.UUID
		warning *inbound.QuantityWarning
	)
	shipment, err := s.mutate(ctx, "add_line_from_po", shipmentID, 0, func(sh *inbound.InboundShipment) error {
		open := poLine.OpenQty() - sh.ShippedQtyForPOLine(poLine.ID)
		if open < 0 {
			open = 0
		}
		ref := inbound.POLineRef{
			PurchaseOrderID:     order.ID,
			PurchaseOrderLineID: poLine.ID,
			PONumber:            order.Number,
			ProductID:           poLine.ProductID,
			VendorSKU:           poLine.VendorSKU,
			Description:         poLine.Description,
			UnitCost:            poLine.UnitCost,
			OpenQty:             open,
		}
		line, w, err := sh.AddLineFromPO(ref, req.QtyShipped, req.MeasuresBody.toDomain(), req.Actor)
		if err != nil {
			return err
		}
		lineID, warning = line.ID, w
		return nil
	})
	if err != nil {
		return nil, err
	}
	if warning != nil {
		logger.WithLogger(ctx, s.logger).Warn("shipped quantity exceeds open PO quantity",
			zap.String("shipment_id", shipmentID.String()),
			zap.String("po_number", order.Number),
			zap.Int64("open_qty", warning.OpenQty),
			zap.Int64("qty_shipped", warning.QtyShipped),
		)
	}
	return &AddLineResponse{LineID: lineID, Warning: warning, Shipment: ToShipmentResponse(shipment)}, nil
}

func (s *ShipmentService) addPackingListLine(ctx context.Context, shipmentID uuid.UUID, req AddLineRequest) (*AddLineResponse, error) {
	entry := inbound.PackingListEntry{
		SKU:         req.SKU,
		ProductID:   req.ProductID,
		Description: req.Description,
	}
	if req.UnitCost != nil {
		cost, err := valueobject.ParseUnitCost(*req.UnitCost)
		if err != nil {
			return nil, err
		}
		entry.UnitCost = &cost
	}
	if s.catalog != nil && req.ProductID != nil && (entry.SKU == "" || entry.Description == "") {
		info, err := s.catalog.FindProduct(ctx, *req.ProductID)
		if err != nil {
			return nil, fmt.Errorf("look up product %s: %w", req.ProductID, err)
		}
		if info != nil {
			if entry.SKU == "" {
				entry.SKU = info.SKU
			}
			if entry.Description == "" {
				entry.Description = info.Description
			}
		}
	}

	var lineID uuid.UUID
	shipment, err := s.mutate(ctx, "add_packing_list_line", shipmentID, 0, func(sh *inbound.InboundShipment) error {
		line, err := sh.AddPackingListLine(entry, req.QtyShipped, req.MeasuresBody.toDomain(), req.Actor)
		if err != nil {
			return err
		}
		lineID = line.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &AddLineResponse{LineID: lineID, Shipment: ToShipmentResponse(shipment)}, nil
}

// UpdateLine changes quantity and measures of a line
func (s *ShipmentService) UpdateLine(ctx context.Context, shipmentID, lineID uuid.UUID, req UpdateLineRequest) (*ShipmentResponse, error) {
	return s.respond(s.mutate(ctx, "update_line", shipmentID, 0, func(sh *inbound.InboundShipment) error {
		return sh.UpdateLine(lineID, req.QtyShipped, req.MeasuresBody.toDomain(), req.Actor)
	}))
}

// RemoveLine deletes a line
func (s *ShipmentService) RemoveLine(ctx context.Context, shipmentID, lineID uuid.UUID, actor string) (*ShipmentResponse, error) {
	return s.respond(s.mutate(ctx, "remove_line", shipmentID, 0, func(sh *inbound.InboundShipment) error {
		return sh.RemoveLine(lineID, actor)
	}))
}

// AddCost adds a shipment cost; any previous allocation becomes stale
func (s *ShipmentService) AddCost(ctx context.Context, shipmentID uuid.UUID, req CostRequest) (*ShipmentResponse, error) {
	in, err := req.toDomain()
	if err != nil {
		return nil, err
	}
	return s.respond(s.mutate(ctx, "add_cost", shipmentID, 0, func(sh *inbound.InboundShipment) error {
		_, err := sh.AddCost(in, req.Actor)
		return err
	}))
}

// UpdateCost replaces a shipment cost
func (s *ShipmentService) UpdateCost(ctx context.Context, shipmentID, costID uuid.UUID, req CostRequest) (*ShipmentResponse, error) {
	in, err := req.toDomain()
	if err != nil {
		return nil, err
	}
	return s.respond(s.mutate(ctx, "update_cost", shipmentID, 0, func(sh *inbound.InboundShipment) error {
		return sh.UpdateCost(costID, in, req.Actor)
	}))
}

// RemoveCost deletes a shipment cost
func (s *ShipmentService) RemoveCost(ctx context.Context, shipmentID, costID uuid.UUID, actor string) (*ShipmentResponse, error) {
	return s.respond(s.mutate(ctx, "remove_cost", shipmentID, 0, func(sh *inbound.InboundShipment) error {
		return sh.RemoveCost(costID, actor)
	}))
}

// Transition applies a lifecycle action. run_allocation and finalize are
// accepted here too and behave exactly like RunAllocation and Finalize.
func (s *ShipmentService) Transition(ctx context.Context, shipmentID uuid.UUID, req TransitionRequest) (*TransitionResponse, error) {
	action, ok := inbound.ParseShipmentAction(req.Action)
	if !ok {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown shipment action %q", req.Action))
	}
	result, shipment, err := s.apply(ctx, shipmentID, action, req)
	if err != nil {
		return nil, err
	}
	effects := make([]string, len(result.Effects))
	for i, e := range result.Effects {
		effects[i] = e.EventType()
	}
	return &TransitionResponse{
		From:     string(result.From),
		To:       string(result.To),
		Action:   string(result.Action),
		Effects:  effects,
		Shipment: ToShipmentResponse(shipment),
	}, nil
}

// RunAllocation spreads every cost over the shipment lines
func (s *ShipmentService) RunAllocation(ctx context.Context, shipmentID uuid.UUID, req TransitionRequest) (*AllocationRunResponse, error) {
	result, shipment, err := s.apply(ctx, shipmentID, inbound.ActionRunAllocation, req)
	if err != nil {
		return nil, err
	}
	return &AllocationRunResponse{
		TotalAllocated: result.Allocation.TotalAllocated().String(),
		Costs:          toCostBasisResponses(result.Allocation.Costs),
		Shipment:       ToShipmentResponse(shipment),
	}, nil
}

// Finalize freezes the current allocation. The snapshot is archived by the
// LandedCostFinalized event handler once the outbox relays the event.
func (s *ShipmentService) Finalize(ctx context.Context, shipmentID uuid.UUID, req TransitionRequest) (*inbound.LandedCostSnapshot, error) {
	result, _, err := s.apply(ctx, shipmentID, inbound.ActionFinalize, req)
	if err != nil {
		return nil, err
	}
	return result.Snapshot, nil
}

// GetSnapshot reads an archived landed-cost snapshot
func (s *ShipmentService) GetSnapshot(ctx context.Context, shipmentID uuid.UUID, revision int) (*inbound.LandedCostSnapshot, error) {
	if s.archive == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "snapshot archive is not configured")
	}
	return s.archive.Get(ctx, shipmentID, revision)
}

// AvailableActions lists the actions legal for the shipment right now
func (s *ShipmentService) AvailableActions(ctx context.Context, shipmentID uuid.UUID) ([]string, error) {
	shipment, err := s.load(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	actions := shipment.AvailableActions()
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return names, nil
}

// apply runs a lifecycle action under the shipment lock and records its
// logs and metrics.
func (s *ShipmentService) apply(ctx context.Context, shipmentID uuid.UUID, action inbound.ShipmentAction, req TransitionRequest) (*inbound.TransitionResult, *inbound.InboundShipment, error) {
	var (
		result  *inbound.TransitionResult
		mode    inbound.ShipmentMode
		started time.Time
		elapsed time.Duration
	)
	shipment, err := s.mutate(ctx, string(action), shipmentID, req.ExpectedVersion, func(sh *inbound.InboundShipment) error {
		mode = sh.Mode
		started = time.Now()
		var err error
		result, err = sh.ApplyTransition(action, inbound.TransitionInput{Actor: req.Actor, Notes: req.Notes})
		elapsed = time.Since(started)
		return err
	})

	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("shipment_id", shipmentID.String()),
		zap.String("action", string(action)),
	)
	if err != nil {
		s.observeFailure(ctx, log, action, mode, elapsed, err)
		return nil, nil, err
	}

	log.Info("inbound shipment transitioned",
		zap.String("number", shipment.Number),
		zap.String("from", string(result.From)),
		zap.String("to", string(result.To)),
		zap.String("actor", req.Actor),
	)
	if s.businessMetrics != nil {
		s.businessMetrics.RecordTransition(ctx, telemetry.EntityInboundShipment, string(action), string(result.From), string(result.To))
	}
	if result.Allocation != nil {
		for _, c := range result.Allocation.Costs {
			if c.FellBack() {
				log.Warn("default allocation fell back to line count",
					zap.String("cost_id", c.CostID.String()),
					zap.String("cost_type", string(c.CostType)),
				)
			}
		}
		if s.businessMetrics != nil {
			s.businessMetrics.RecordAllocationRun(ctx, string(mode), telemetry.AllocationOutcomeSuccess, elapsed,
				result.Allocation.TotalAllocated().Cents())
		}
	}
	if result.Snapshot != nil && s.businessMetrics != nil {
		s.businessMetrics.RecordSnapshotFinalized(ctx, string(mode))
	}
	return result, shipment, nil
}

func (s *ShipmentService) observeFailure(ctx context.Context, log *logger.ContextLogger, action inbound.ShipmentAction, mode inbound.ShipmentMode, elapsed time.Duration, err error) {
	var (
		invalid  *statemachine.InvalidTransitionError
		allocErr *inbound.AllocationError
	)
	switch {
	case errors.As(err, &allocErr):
		log.Warn("allocation has no basis",
			zap.String("cost_id", allocErr.CostID.String()),
			zap.String("method", string(allocErr.Method)),
		)
		if s.businessMetrics != nil {
			s.businessMetrics.RecordAllocationRun(ctx, string(mode), telemetry.AllocationOutcomeNoBasis, elapsed, 0)
		}
	case errors.As(err, &invalid):
		log.Warn("inbound shipment transition refused",
			zap.String("from", invalid.From),
			zap.String("reason", invalid.Reason),
		)
	case shared.CodeOf(err) == shared.CodeNotReadyToFinalize:
		log.Warn("finalize refused", zap.Error(err))
	default:
		return
	}
	if s.businessMetrics != nil {
		s.businessMetrics.RecordRejection(ctx, telemetry.EntityInboundShipment, string(action), shared.CodeOf(err))
	}
}

func (s *ShipmentService) load(ctx context.Context, shipmentID uuid.UUID) (*inbound.InboundShipment, error) {
	shipment, err := s.shipmentRepo.FindByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if s.clock != nil {
		shipment.SetClock(s.clock)
	}
	return shipment, nil
}

// mutate runs fn against a freshly loaded shipment while holding its lock,
// then saves it with the repository's version check.
func (s *ShipmentService) mutate(ctx context.Context, method string, shipmentID uuid.UUID, expectedVersion int, fn func(*inbound.InboundShipment) error) (shipment *inbound.InboundShipment, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, method)
	telemetry.SetAttribute(span, telemetry.SpanAttrShipmentID, shipmentID.String())
	defer func() { endSpan(span, err) }()

	release, err := s.locker.Lock(ctx, inbound.AggregateTypeInboundShipment, shipmentID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			logger.WithLogger(ctx, s.logger).Error("failed to release shipment lock",
				zap.String("shipment_id", shipmentID.String()), zap.Error(rerr))
		}
	}()

	shipment, err = s.load(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := shipment.CheckVersion(expectedVersion); err != nil {
		return nil, err
	}
	if err := fn(shipment); err != nil {
		return nil, err
	}
	if err := s.shipmentRepo.SaveWithLock(ctx, shipment); err != nil {
		return nil, fmt.Errorf("save shipment %s: %w", shipment.Number, err)
	}
	return shipment, nil
}

func (s *ShipmentService) respond(shipment *inbound.InboundShipment, err error) (*ShipmentResponse, error) {
	if err != nil {
		return nil, err
	}
	response := ToShipmentResponse(shipment)
	return &response, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}
	span.End()
}
