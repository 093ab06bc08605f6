package trade

import (
	"fmt"
	"strings"

	"github.com/cardshellz/echelon/internal/domain/shared"
)

// Incoterm is an ICC trade term
type Incoterm string

const (
	IncotermEXW Incoterm = "EXW"
	IncotermFCA Incoterm = "FCA"
	IncotermFOB Incoterm = "FOB"
	IncotermCFR Incoterm = "CFR"
	IncotermCIF Incoterm = "CIF"
	IncotermCPT Incoterm = "CPT"
	IncotermCIP Incoterm = "CIP"
	IncotermDAP Incoterm = "DAP"
	IncotermDPU Incoterm = "DPU"
	IncotermDDP Incoterm = "DDP"
)

// ChargeApplicability says which PO charge categories the buyer may carry on
// the PO under a given term.
type ChargeApplicability struct {
	ShippingApplicable bool `json:"shipping_applicable"`
	TaxApplicable      bool `json:"tax_applicable"`
}

var applicabilityTable = map[Incoterm]ChargeApplicability{
	IncotermEXW: {},
	IncotermFCA: {},
	IncotermFOB: {},
	IncotermCFR: {ShippingApplicable: true},
	IncotermCIF: {ShippingApplicable: true},
	IncotermCPT: {ShippingApplicable: true},
	IncotermCIP: {ShippingApplicable: true},
	IncotermDAP: {ShippingApplicable: true},
	IncotermDPU: {ShippingApplicable: true},
	IncotermDDP: {ShippingApplicable: true, TaxApplicable: true},
}

// Applicability looks up the charge table. A nil term leaves both charges open.
func Applicability(term *Incoterm) ChargeApplicability {
	if term == nil {
		return ChargeApplicability{ShippingApplicable: true, TaxApplicable: true}
	}
	return applicabilityTable[*term]
}

// IsValid reports whether the term is a supported code
func (i Incoterm) IsValid() bool {
	_, ok := applicabilityTable[i]
	return ok
}

func (i Incoterm) String() string {
	return string(i)
}

// ParseIncoterm accepts a case-insensitive code; the empty string means "no term"
func ParseIncoterm(s string) (*Incoterm, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}
	term := Incoterm(s)
	if !term.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown incoterm %q", s))
	}
	return &term, nil
}

// AllIncoterms lists the supported terms in the order buyers usually see them,
// from least to most seller responsibility.
func AllIncoterms() []Incoterm {
	return []Incoterm{
		IncotermEXW, IncotermFCA, IncotermFOB,
		IncotermCFR, IncotermCIF, IncotermCPT, IncotermCIP,
		IncotermDAP, IncotermDPU, IncotermDDP,
	}
}
