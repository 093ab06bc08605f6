package inbound

import (
	"fmt"
	"strings"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InboundShipment is a consignment of goods on its way to the warehouse,
// usually fulfilling one or more purchase orders. It carries the costs of
// getting the goods there and spreads them over its lines as landed cost.
type InboundShipment struct {
	shared.BaseAggregateRoot
	Number               string
	Status               ShipmentStatus
	Mode                 ShipmentMode
	Currency             valueobject.Currency
	CarrierName          string
	ContainerNumber      string
	BillOfLading         string
	TrackingNumber       string
	OriginPort           string
	DestinationPort      string
	ETD                  *time.Time
	ETA                  *time.Time
	ShipDate             *time.Time
	DeliveredDate        *time.Time
	ContainerCapacityCbm *decimal.Decimal
	TotalWeightKg        decimal.Decimal
	TotalGrossVolumeCbm  decimal.Decimal
	EstimatedTotalCost   valueobject.Money
	ActualTotalCost      valueobject.Money
	Lines                []ShipmentLine
	Costs                []ShipmentCost
	// CostRevision increases on every cost or line edit
	CostRevision int
	// AllocationRevision is the CostRevision the last allocation ran against
	AllocationRevision int
	// AllocationBases records the basis each cost used in the last run
	AllocationBases   []CostAllocation
	Finalized         bool
	FinalizedAt       *time.Time
	FinalizedRevision int
	CancelReason      string
	Notes             string
	History           []shared.StatusChange

	clock shared.Clock
}

// ShipmentDetails are the header fields editable while the shipment is open
type ShipmentDetails struct {
	CarrierName          string
	ContainerNumber      string
	BillOfLading         string
	TrackingNumber       string
	OriginPort           string
	DestinationPort      string
	ETD                  *time.Time
	ETA                  *time.Time
	ContainerCapacityCbm *decimal.Decimal
	Notes                string
}

// NewShipmentInput holds the fields of a new shipment
type NewShipmentInput struct {
	Number   string
	Mode     ShipmentMode
	Currency valueobject.Currency
	Details  ShipmentDetails
	Actor    string
	Clock    shared.Clock
}

// NewInboundShipment creates a draft shipment
func NewInboundShipment(in NewShipmentInput) (*InboundShipment, error) {
	if strings.TrimSpace(in.Number) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "shipment number cannot be empty")
	}
	if len(in.Number) > 50 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "shipment number cannot exceed 50 characters")
	}
	if !in.Mode.IsValid() {
		return nil, invalidEnum("shipment mode", in.Mode)
	}
	if err := in.Details.validate(); err != nil {
		return nil, err
	}
	if in.Currency == "" {
		in.Currency = valueobject.DefaultCurrency
	}

	s := &InboundShipment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            in.Number,
		Status:            ShipmentStatusDraft,
		Mode:              in.Mode,
		Currency:          in.Currency,
		Lines:             make([]ShipmentLine, 0),
		Costs:             make([]ShipmentCost, 0),
		CostRevision:      1,
		clock:             in.Clock,
	}
	s.applyDetails(in.Details)
	now := s.now()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.appendHistory("", ShipmentStatusDraft, historyActionCreate, in.Actor, "", now)
	s.AddDomainEvent(newShipmentCreatedEvent(s, now))
	return s, nil
}

func (d ShipmentDetails) validate() error {
	if d.ContainerCapacityCbm != nil && !d.ContainerCapacityCbm.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidInput, "container capacity must be positive")
	}
	return nil
}

func (s *InboundShipment) applyDetails(d ShipmentDetails) {
	s.CarrierName = strings.TrimSpace(d.CarrierName)
	s.ContainerNumber = strings.TrimSpace(d.ContainerNumber)
	s.BillOfLading = strings.TrimSpace(d.BillOfLading)
	s.TrackingNumber = strings.TrimSpace(d.TrackingNumber)
	s.OriginPort = strings.TrimSpace(d.OriginPort)
	s.DestinationPort = strings.TrimSpace(d.DestinationPort)
	s.ETD = d.ETD
	s.ETA = d.ETA
	s.ContainerCapacityCbm = d.ContainerCapacityCbm
	s.Notes = d.Notes
}

// SetClock overrides the time source
func (s *InboundShipment) SetClock(c shared.Clock) {
	s.clock = c
}

func (s *InboundShipment) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return shared.SystemClock()
}

// IsEditable reports whether lines, costs and details may change
func (s *InboundShipment) IsEditable() bool {
	return s.Status.IsEditable()
}

func (s *InboundShipment) requireEditable(what string) error {
	if !s.IsEditable() {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot %s a shipment in %s status", what, s.Status))
	}
	return nil
}

// UpdateDetails replaces the editable header fields
func (s *InboundShipment) UpdateDetails(d ShipmentDetails, actor string, expectedVersion int) error {
	if err := s.CheckVersion(expectedVersion); err != nil {
		return err
	}
	if err := s.requireEditable("edit"); err != nil {
		return err
	}
	if err := d.validate(); err != nil {
		return err
	}
	s.applyDetails(d)
	now := s.now()
	s.UpdatedAt = now
	s.appendHistory(s.Status, s.Status, historyActionEditHeader, actor, "", now)
	return nil
}

// AddLineFromPO adds a line fulfilling a PO line. A quantity above the PO
// line's open quantity is accepted and reported as a warning.
func (s *InboundShipment) AddLineFromPO(ref POLineRef, qty int64, m LineMeasures, actor string) (*ShipmentLine, *QuantityWarning, error) {
	if err := s.requireEditable("add lines to"); err != nil {
		return nil, nil, err
	}
	if ref.PurchaseOrderID == uuid.Nil || ref.PurchaseOrderLineID == uuid.Nil {
		return nil, nil, shared.NewDomainError(shared.CodeInvalidInput, "purchase order line reference is required")
	}
	if err := validateQty(qty, m); err != nil {
		return nil, nil, err
	}

	poID, poLineID := ref.PurchaseOrderID, ref.PurchaseOrderLineID
	line := s.newLine(qty, m)
	line.PurchaseOrderID = &poID
	line.PurchaseOrderLineID = &poLineID
	line.PONumber = ref.PONumber
	if ref.ProductID != uuid.Nil {
		pid := ref.ProductID
		line.ProductID = &pid
	}
	line.SKU = ref.VendorSKU
	line.Description = ref.Description
	line.PoUnitCost = ref.UnitCost

	var warning *QuantityWarning
	if qty > ref.OpenQty {
		warning = &QuantityWarning{PurchaseOrderLineID: poLineID, OpenQty: ref.OpenQty, QtyShipped: qty}
	}
	added := s.appendLine(line, actor, fmt.Sprintf("added PO %s line qty %d", ref.PONumber, qty))
	return added, warning, nil
}

// AddPackingListLine adds a freestanding line with no PO link
func (s *InboundShipment) AddPackingListLine(entry PackingListEntry, qty int64, m LineMeasures, actor string) (*ShipmentLine, error) {
	if err := s.requireEditable("add lines to"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(entry.SKU) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "sku is required for packing-list lines")
	}
	if err := validateQty(qty, m); err != nil {
		return nil, err
	}
	line := s.newLine(qty, m)
	line.SKU = strings.TrimSpace(entry.SKU)
	line.ProductID = entry.ProductID
	line.Description = entry.Description
	line.PoUnitCost = entry.UnitCost
	return s.appendLine(line, actor, fmt.Sprintf("added packing-list %s qty %d", line.SKU, qty)), nil
}

// UpdateLine changes the quantity and measures of a line
func (s *InboundShipment) UpdateLine(lineID uuid.UUID, qty int64, m LineMeasures, actor string) error {
	if err := s.requireEditable("update lines of"); err != nil {
		return err
	}
	if err := validateQty(qty, m); err != nil {
		return err
	}
	line := s.Line(lineID)
	if line == nil {
		return shared.NewDomainError(shared.CodeNotFound, "shipment line not found")
	}
	line.QtyShipped = qty
	line.applyMeasures(m)
	line.UpdatedAt = s.now()
	s.costInputsChanged(historyActionEditLines, actor, fmt.Sprintf("updated line %d qty %d", line.LineNumber, qty))
	return nil
}

// RemoveLine deletes a line
func (s *InboundShipment) RemoveLine(lineID uuid.UUID, actor string) error {
	if err := s.requireEditable("remove lines from"); err != nil {
		return err
	}
	for i := range s.Lines {
		if s.Lines[i].ID == lineID {
			n := s.Lines[i].LineNumber
			s.Lines = append(s.Lines[:i], s.Lines[i+1:]...)
			s.costInputsChanged(historyActionEditLines, actor, fmt.Sprintf("removed line %d", n))
			return nil
		}
	}
	return shared.NewDomainError(shared.CodeNotFound, "shipment line not found")
}

// Line returns the line with the given ID, or nil
func (s *InboundShipment) Line(lineID uuid.UUID) *ShipmentLine {
	for i := range s.Lines {
		if s.Lines[i].ID == lineID {
			return &s.Lines[i]
		}
	}
	return nil
}

// ShippedQtyForPOLine sums the quantity already on this shipment for a PO line
func (s *InboundShipment) ShippedQtyForPOLine(poLineID uuid.UUID) int64 {
	var qty int64
	for i := range s.Lines {
		if id := s.Lines[i].PurchaseOrderLineID; id != nil && *id == poLineID {
			qty += s.Lines[i].QtyShipped
		}
	}
	return qty
}

func validateQty(qty int64, m LineMeasures) error {
	if qty < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "shipped quantity cannot be negative")
	}
	return m.validate()
}

func (s *InboundShipment) newLine(qty int64, m LineMeasures) ShipmentLine {
	now := s.now()
	line := ShipmentLine{
		ID:         uuid.New(),
		ShipmentID: s.ID,
		LineNumber: s.nextLineNumber(),
		QtyShipped: qty,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	line.applyMeasures(m)
	return line
}

func (s *InboundShipment) appendLine(line ShipmentLine, actor, note string) *ShipmentLine {
	s.Lines = append(s.Lines, line)
	s.costInputsChanged(historyActionEditLines, actor, note)
	return &s.Lines[len(s.Lines)-1]
}

func (s *InboundShipment) nextLineNumber() int {
	n := 0
	for _, l := range s.Lines {
		if l.LineNumber > n {
			n = l.LineNumber
		}
	}
	return n + 1
}

// AddCost adds a shipment cost
func (s *InboundShipment) AddCost(in CostInput, actor string) (*ShipmentCost, error) {
	if err := s.requireEditable("add costs to"); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	cost := ShipmentCost{ID: uuid.New(), ShipmentID: s.ID, CreatedAt: now}
	cost.apply(in, now)
	s.Costs = append(s.Costs, cost)
	s.costInputsChanged(historyActionEditCosts, actor, fmt.Sprintf("added %s cost %s", cost.CostType, cost.Amount()))
	return &s.Costs[len(s.Costs)-1], nil
}

// UpdateCost replaces the editable fields of a cost
func (s *InboundShipment) UpdateCost(costID uuid.UUID, in CostInput, actor string) error {
	if err := s.requireEditable("update costs of"); err != nil {
		return err
	}
	if err := in.normalize(); err != nil {
		return err
	}
	cost := s.Cost(costID)
	if cost == nil {
		return shared.NewDomainError(shared.CodeNotFound, "shipment cost not found")
	}
	cost.apply(in, s.now())
	s.costInputsChanged(historyActionEditCosts, actor, fmt.Sprintf("updated %s cost %s", cost.CostType, cost.Amount()))
	return nil
}

// RemoveCost deletes a cost
func (s *InboundShipment) RemoveCost(costID uuid.UUID, actor string) error {
	if err := s.requireEditable("remove costs from"); err != nil {
		return err
	}
	for i := range s.Costs {
		if s.Costs[i].ID == costID {
			removed := s.Costs[i]
			s.Costs = append(s.Costs[:i], s.Costs[i+1:]...)
			s.costInputsChanged(historyActionEditCosts, actor, fmt.Sprintf("removed %s cost %s", removed.CostType, removed.Amount()))
			return nil
		}
	}
	return shared.NewDomainError(shared.CodeNotFound, "shipment cost not found")
}

// Cost returns the cost with the given ID, or nil
func (s *InboundShipment) Cost(costID uuid.UUID) *ShipmentCost {
	for i := range s.Costs {
		if s.Costs[i].ID == costID {
			return &s.Costs[i]
		}
	}
	return nil
}

// costInputsChanged invalidates every allocation output after a cost or line
// edit, so that finalize and close need a fresh run.
func (s *InboundShipment) costInputsChanged(action, actor, note string) {
	s.CostRevision++
	for i := range s.Lines {
		s.Lines[i].Allocation = nil
	}
	s.AllocationBases = nil
	s.Finalized = false
	s.recalculateAggregates()
	now := s.now()
	s.UpdatedAt = now
	s.appendHistory(s.Status, s.Status, action, actor, note, now)
}

func (s *InboundShipment) recalculateAggregates() {
	weight, volume := decimal.Zero, decimal.Zero
	for i := range s.Lines {
		weight = weight.Add(s.Lines[i].TotalWeightKg)
		volume = volume.Add(s.Lines[i].GrossVolumeCbm)
	}
	s.TotalWeightKg = weight
	s.TotalGrossVolumeCbm = volume

	var estimated, actual valueobject.Money
	for i := range s.Costs {
		estimated = estimated.Add(s.Costs[i].EstimatedAmount)
		if s.Costs[i].ActualAmount != nil {
			actual = actual.Add(*s.Costs[i].ActualAmount)
		}
	}
	s.EstimatedTotalCost = estimated
	s.ActualTotalCost = actual
}

// ContainerUtilization is gross volume over container capacity, nil when the
// capacity is unknown.
func (s *InboundShipment) ContainerUtilization() *decimal.Decimal {
	if s.ContainerCapacityCbm == nil || !s.ContainerCapacityCbm.IsPositive() {
		return nil
	}
	u := s.TotalGrossVolumeCbm.DivRound(*s.ContainerCapacityCbm, 4)
	return &u
}

// staleAllocationReason explains why landed costs cannot be finalized, or
// returns "" when every line carries output from a run after the last edit.
func (s *InboundShipment) staleAllocationReason() string {
	if s.AllocationRevision == 0 {
		return "allocation has not been run"
	}
	if s.AllocationRevision != s.CostRevision {
		return "costs or lines changed since the last allocation run"
	}
	for i := range s.Lines {
		a := s.Lines[i].Allocation
		if a == nil || a.Revision != s.CostRevision {
			return fmt.Sprintf("line %d has no allocated cost", s.Lines[i].LineNumber)
		}
	}
	return ""
}

// IsAllocationFresh reports whether the last allocation run covers the current costs and lines
func (s *InboundShipment) IsAllocationFresh() bool {
	return s.staleAllocationReason() == ""
}

func (s *InboundShipment) appendHistory(from, to ShipmentStatus, action, actor, notes string, at time.Time) shared.StatusChange {
	change := shared.StatusChange{
		From:   string(from),
		To:     string(to),
		Action: action,
		At:     at,
		Actor:  actor,
		Notes:  notes,
	}
	s.History = append(s.History, change)
	return change
}
