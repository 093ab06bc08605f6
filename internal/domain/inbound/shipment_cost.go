package inbound

import (
	"strings"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ShipmentCost is a charge incurred by the shipment as a whole
type ShipmentCost struct {
	ID               uuid.UUID
	ShipmentID       uuid.UUID
	CostType         CostType
	AllocationMethod AllocationMethod
	EstimatedAmount  valueobject.Money
	ActualAmount     *valueobject.Money
	Status           CostStatus
	Description      string
	InvoiceNumber    string
	VendorName       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Amount is the actual amount when known, otherwise the estimate
func (c *ShipmentCost) Amount() valueobject.Money {
	if c.ActualAmount != nil {
		return *c.ActualAmount
	}
	return c.EstimatedAmount
}

// CostInput carries the editable fields of a cost
type CostInput struct {
	CostType         CostType
	AllocationMethod AllocationMethod
	EstimatedAmount  valueobject.Money
	ActualAmount     *valueobject.Money
	Status           CostStatus
	Description      string
	InvoiceNumber    string
	VendorName       string
}

func (in *CostInput) normalize() error {
	if in.AllocationMethod == "" {
		in.AllocationMethod = MethodDefault
	}
	if in.Status == "" {
		in.Status = CostStatusEstimated
	}
	if !in.CostType.IsValid() {
		return invalidEnum("cost type", in.CostType)
	}
	if !in.AllocationMethod.IsValid() {
		return invalidEnum("allocation method", in.AllocationMethod)
	}
	if !in.Status.IsValid() {
		return invalidEnum("cost status", in.Status)
	}
	if in.EstimatedAmount.IsNegative() || (in.ActualAmount != nil && in.ActualAmount.IsNegative()) {
		return shared.NewDomainError(shared.CodeInvalidInput, "cost amounts cannot be negative")
	}
	return nil
}

func (c *ShipmentCost) apply(in CostInput, now time.Time) {
	c.CostType = in.CostType
	c.AllocationMethod = in.AllocationMethod
	c.EstimatedAmount = in.EstimatedAmount
	c.ActualAmount = nil
	if in.ActualAmount != nil {
		a := *in.ActualAmount
		c.ActualAmount = &a
	}
	c.Status = in.Status
	c.Description = strings.TrimSpace(in.Description)
	c.InvoiceNumber = strings.TrimSpace(in.InvoiceNumber)
	c.VendorName = strings.TrimSpace(in.VendorName)
	c.UpdatedAt = now
}
