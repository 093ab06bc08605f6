package trade

import (
	"context"
	"errors"
	"fmt"

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

const spanService = "purchase_order"

// PurchaseOrderService handles purchase order business operations.
// Every mutation runs under the per-order lock, reloads the order, checks the
// caller's expected version and saves with the repository's version check.
type PurchaseOrderService struct {
	orderRepo       trade.PurchaseOrderRepository
	locker          shared.EntityLocker
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
	clock           shared.Clock
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(orderRepo trade.PurchaseOrderRepository, locker shared.EntityLocker, log *zap.Logger) *PurchaseOrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PurchaseOrderService{
		orderRepo: orderRepo,
		locker:    locker,
		logger:    log,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *PurchaseOrderService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// SetClock pins the time source for every order the service touches
func (s *PurchaseOrderService) SetClock(c shared.Clock) {
	s.clock = c
}

// Create creates a new draft purchase order, optionally with initial lines
func (s *PurchaseOrderService) Create(ctx context.Context, req CreatePurchaseOrderRequest) (resp *PurchaseOrderResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "create")
	defer func() { s.endSpan(span, err) }()

	exists, err := s.orderRepo.ExistsByNumber(ctx, req.Number)
	if err != nil {
		return nil, fmt.Errorf("check purchase order number: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("purchase order %s already exists", req.Number))
	}

	term, err := trade.ParseIncoterm(req.Incoterm)
	if err != nil {
		return nil, err
	}
	cur, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	order, err := trade.NewPurchaseOrder(trade.NewPurchaseOrderInput{
		Number:       req.Number,
		VendorID:     req.VendorID,
		Incoterm:     term,
		PoType:       trade.PoType(req.PoType),
		Priority:     trade.Priority(req.Priority),
		Currency:     cur,
		ExpectedDate: req.ExpectedDate,
		Notes:        req.Notes,
		Actor:        req.Actor,
		Clock:        s.clock,
	})
	if err != nil {
		return nil, err
	}
	for _, body := range req.Lines {
		in, err := body.ToDomain()
		if err != nil {
			return nil, err
		}
		if _, err := order.AddLine(in); err != nil {
			return nil, err
		}
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create purchase order %s: %w", order.Number, err)
	}

	logger.WithLogger(ctx, s.logger).Info("purchase order created",
		zap.String("order_id", order.ID.String()),
		zap.String("number", order.Number),
		zap.Int("lines", len(order.Lines)),
	)
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

// GetByID retrieves a purchase order by ID, including its available actions
func (s *PurchaseOrderService) GetByID(ctx context.Context, orderID uuid.UUID) (*PurchaseOrderResponse, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

// List retrieves a list of purchase orders with filtering and pagination
func (s *PurchaseOrderService) List(ctx context.Context, filter PurchaseOrderListFilter) ([]PurchaseOrderListItemResponse, int64, error) {
	domainFilter := trade.PurchaseOrderFilter{Filter: shared.DefaultFilter().
		WithPage(filter.Page, filter.PageSize).
		WithOrder(filter.OrderBy, filter.OrderDir)}
	domainFilter.Search = filter.Search
	if filter.Status != "" {
		status := trade.PurchaseOrderStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown status %q", filter.Status))
		}
		domainFilter.Status = &status
	}
	if filter.VendorID != "" {
		vendorID, err := uuid.Parse(filter.VendorID)
		if err != nil {
			return nil, 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid vendor_id %q", filter.VendorID))
		}
		domainFilter.VendorID = &vendorID
	}

	orders, total, err := s.orderRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("list purchase orders: %w", err)
	}
	return ToPurchaseOrderListItemResponses(orders), total, nil
}

// AddLine appends a line to a draft order
func (s *PurchaseOrderService) AddLine(ctx context.Context, orderID uuid.UUID, body LineInputBody) (*PurchaseOrderResponse, error) {
	in, err := body.ToDomain()
	if err != nil {
		return nil, err
	}
	return s.respond(s.mutate(ctx, "add_line", orderID, 0, func(o *trade.PurchaseOrder) error {
		_, err := o.AddLine(in)
		return err
	}))
}

// UpdateLine replaces the editable fields of a draft line
func (s *PurchaseOrderService) UpdateLine(ctx context.Context, orderID, lineID uuid.UUID, body LineInputBody) (*PurchaseOrderResponse, error) {
	in, err := body.ToDomain()
	if err != nil {
		return nil, err
	}
	return s.respond(s.mutate(ctx, "update_line", orderID, 0, func(o *trade.PurchaseOrder) error {
		return o.UpdateLine(lineID, in)
	}))
}

// RemoveLine deletes a draft line
func (s *PurchaseOrderService) RemoveLine(ctx context.Context, orderID, lineID uuid.UUID) (*PurchaseOrderResponse, error) {
	return s.respond(s.mutate(ctx, "remove_line", orderID, 0, func(o *trade.PurchaseOrder) error {
		return o.RemoveLine(lineID)
	}))
}

// EditCharges applies a partial charge update under the incoterm rules
func (s *PurchaseOrderService) EditCharges(ctx context.Context, orderID uuid.UUID, req EditChargesRequest) (*PurchaseOrderResponse, error) {
	patch, err := req.ToDomain()
	if err != nil {
		return nil, err
	}
	order, err := s.mutate(ctx, "edit_charges", orderID, req.ExpectedVersion, func(o *trade.PurchaseOrder) error {
		patch.ExpectedVersion = 0
		return o.EditCharges(patch)
	})
	if err != nil {
		if shared.CodeOf(err) == shared.CodeChargeNotApplicable {
			s.recordRejection(ctx, "edit_charges", err)
		}
		return nil, err
	}
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

// Transition applies a lifecycle action. Guard failures and illegal actions
// come back as *statemachine.InvalidTransitionError and are never retried.
func (s *PurchaseOrderService) Transition(ctx context.Context, orderID uuid.UUID, req TransitionRequest) (*TransitionResponse, error) {
	action, ok := trade.ParsePurchaseOrderAction(req.Action)
	if !ok {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown purchase order action %q", req.Action))
	}

	var result *trade.TransitionResult
	order, err := s.mutate(ctx, string(action), orderID, req.ExpectedVersion, func(o *trade.PurchaseOrder) error {
		var err error
		result, err = o.ApplyTransition(action, trade.TransitionInput{
			Actor:                 req.Actor,
			Notes:                 req.Notes,
			VendorReference:       req.VendorReference,
			ConfirmedDeliveryDate: req.ConfirmedDeliveryDate,
		})
		return err
	})
	if err != nil {
		var invalid *statemachine.InvalidTransitionError
		if errors.As(err, &invalid) {
			logger.WithLogger(ctx, s.logger).Warn("purchase order transition refused",
				zap.String("order_id", orderID.String()),
				zap.String("action", string(action)),
				zap.String("from", invalid.From),
				zap.String("reason", invalid.Reason),
			)
			s.recordRejection(ctx, string(action), err)
		}
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("purchase order transitioned",
		zap.String("order_id", order.ID.String()),
		zap.String("number", order.Number),
		zap.String("action", string(action)),
		zap.String("from", string(result.From)),
		zap.String("to", string(result.To)),
		zap.String("actor", req.Actor),
	)
	if s.businessMetrics != nil {
		s.businessMetrics.RecordTransition(ctx, telemetry.EntityPurchaseOrder, string(action), string(result.From), string(result.To))
	}

	effects := make([]string, len(result.Effects))
	for i, e := range result.Effects {
		effects[i] = e.EventType()
	}
	return &TransitionResponse{
		From:    string(result.From),
		To:      string(result.To),
		Action:  string(result.Action),
		Effects: effects,
		Order:   ToPurchaseOrderResponse(order),
	}, nil
}

// AvailableActions lists the actions legal for the order right now
func (s *PurchaseOrderService) AvailableActions(ctx context.Context, orderID uuid.UUID) ([]string, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	actions := order.AvailableActions()
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return names, nil
}

// ReportReceipt records quantities pushed back by the Receiving subsystem
func (s *PurchaseOrderService) ReportReceipt(ctx context.Context, orderID uuid.UUID, req ReportReceiptRequest) (*PurchaseOrderResponse, error) {
	var from trade.PurchaseOrderStatus
	order, err := s.mutate(ctx, "report_receipt", orderID, 0, func(o *trade.PurchaseOrder) error {
		from = o.Status
		return o.ApplyReceipt(req.Lines, req.Actor)
	})
	if err != nil {
		return nil, err
	}
	if from != order.Status && s.businessMetrics != nil {
		s.businessMetrics.RecordTransition(ctx, telemetry.EntityPurchaseOrder, "receipt_reported", string(from), string(order.Status))
	}
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

func (s *PurchaseOrderService) load(ctx context.Context, orderID uuid.UUID) (*trade.PurchaseOrder, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.clock != nil {
		order.SetClock(s.clock)
	}
	return order, nil
}

// mutate runs fn against a freshly loaded order while holding the order's
// lock, then saves it with the repository's version check.
func (s *PurchaseOrderService) mutate(ctx context.Context, method string, orderID uuid.UUID, expectedVersion int, fn func(*trade.PurchaseOrder) error) (order *trade.PurchaseOrder, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, method)
	telemetry.SetAttribute(span, telemetry.SpanAttrPurchaseOrderID, orderID.String())
	defer func() { s.endSpan(span, err) }()

	release, err := s.locker.Lock(ctx, trade.AggregateTypePurchaseOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			logger.WithLogger(ctx, s.logger).Error("failed to release purchase order lock",
				zap.String("order_id", orderID.String()), zap.Error(rerr))
		}
	}()

	order, err = s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.CheckVersion(expectedVersion); err != nil {
		return nil, err
	}
	if err := fn(order); err != nil {
		return nil, err
	}
	if err := s.orderRepo.SaveWithLock(ctx, order); err != nil {
		return nil, fmt.Errorf("save purchase order %s: %w", order.Number, err)
	}
	return order, nil
}

func (s *PurchaseOrderService) respond(order *trade.PurchaseOrder, err error) (*PurchaseOrderResponse, error) {
	if err != nil {
		return nil, err
	}
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

func (s *PurchaseOrderService) recordRejection(ctx context.Context, action string, err error) {
	if s.businessMetrics != nil {
		s.businessMetrics.RecordRejection(ctx, telemetry.EntityPurchaseOrder, action, shared.CodeOf(err))
	}
}

func (s *PurchaseOrderService) endSpan(span trace.Span, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}
	span.End()
}
