package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ErrUnitConversionFailed is returned when no conversion path exists between two units
var ErrUnitConversionFailed = shared.NewDomainError("UNIT_CONVERSION_FAILED", "No conversion path between units")

// ConversionRule states that 1 From equals Factor To.
type ConversionRule struct {
	From   string
	To     string
	Factor decimal.Decimal
}

// DefaultConversionRules are the volume and mass rules every clinic needs.
func DefaultConversionRules() []ConversionRule {
	return []ConversionRule{
		{From: "l", To: "ml", Factor: decimal.NewFromInt(1000)},
		{From: "ml", To: "drops", Factor: decimal.NewFromInt(20)},
		{From: "kg", To: "g", Factor: decimal.NewFromInt(1000)},
		{From: "g", To: "mg", Factor: decimal.NewFromInt(1000)},
		{From: "tsp", To: "ml", Factor: decimal.NewFromInt(5)},
		{From: "tbsp", To: "ml", Factor: decimal.NewFromInt(15)},
		{From: "fl_oz", To: "ml", Factor: decimal.RequireFromString("29.5735")},
	}
}

// UnitConversionResult represents the result of a unit conversion
type UnitConversionResult struct {
	SourceQuantity decimal.Decimal
	SourceUnit     string
	TargetQuantity decimal.Decimal
	TargetUnit     string
	// Path lists the units visited, source first
	Path []string
}

type edge struct {
	to     string
	factor decimal.Decimal
}

// UnitConversionService converts quantities between units over a weighted
// graph of conversion rules. Every rule is registered in both directions.
// Safe for concurrent use.
type UnitConversionService struct {
	mu    sync.RWMutex
	edges map[string][]edge
}

// NewUnitConversionService creates a service loaded with the default rules
func NewUnitConversionService() *UnitConversionService {
	s, err := NewUnitConversionServiceWithRules(DefaultConversionRules())
	if err != nil {
		panic(err)
	}
	return s
}

// NewUnitConversionServiceWithRules creates a service loaded with the given rules only.
// It fails on the first rule AddRule rejects.
func NewUnitConversionServiceWithRules(rules []ConversionRule) (*UnitConversionService, error) {
	s := &UnitConversionService{edges: make(map[string][]edge)}
	for i, r := range rules {
		if err := s.AddRule(r.From, r.To, r.Factor); err != nil {
			return nil, fmt.Errorf("conversion rule %d (%s -> %s): %w", i, r.From, r.To, err)
		}
	}
	return s, nil
}

func normalizeUnit(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

// AddRule registers 1 from = factor to, plus the reciprocal edge.
func (s *UnitConversionService) AddRule(from, to string, factor decimal.Decimal) error {
	if err := s.ValidateConversionRate(factor); err != nil {
		return err
	}
	from, to = normalizeUnit(from), normalizeUnit(to)
	if from == "" || to == "" {
		return shared.NewDomainError("INVALID_UNIT", "Unit code cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setEdge(from, to, factor)
	s.setEdge(to, from, decimal.NewFromInt(1).DivRound(factor, 16))
	return nil
}

func (s *UnitConversionService) setEdge(from, to string, factor decimal.Decimal) {
	for i, e := range s.edges[from] {
		if e.to == to {
			s.edges[from][i].factor = factor
			return
		}
	}
	s.edges[from] = append(s.edges[from], edge{to: to, factor: factor})
}

// HasUnit reports whether the unit appears in any rule
func (s *UnitConversionService) HasUnit(unit string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.edges[normalizeUnit(unit)]
	return ok
}

// Convert converts quantity from one unit to another using the shortest
// chain of rules. Converting a unit to itself is the identity. The result is
// not rounded; callers round to the scale they store.
func (s *UnitConversionService) Convert(quantity decimal.Decimal, from, to string) (*UnitConversionResult, error) {
	from, to = normalizeUnit(from), normalizeUnit(to)
	if from == to {
		return &UnitConversionResult{
			SourceQuantity: quantity,
			SourceUnit:     from,
			TargetQuantity: quantity,
			TargetUnit:     to,
			Path:           []string{from},
		}, nil
	}

	factor, path, ok := s.findPath(from, to)
	if !ok {
		return nil, shared.NewDomainError(ErrUnitConversionFailed.Code,
			fmt.Sprintf("cannot convert from %q to %q", from, to))
	}

	return &UnitConversionResult{
		SourceQuantity: quantity,
		SourceUnit:     from,
		TargetQuantity: quantity.Mul(factor),
		TargetUnit:     to,
		Path:           path,
	}, nil
}

// findPath runs a breadth-first search and returns the product of factors along the path.
func (s *UnitConversionService) findPath(from, to string) (decimal.Decimal, []string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.edges[from]; !ok {
		return decimal.Zero, nil, false
	}

	type node struct {
		unit   string
		factor decimal.Decimal
	}
	prev := map[string]string{from: ""}
	queue := []node{{unit: from, factor: decimal.NewFromInt(1)}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.unit == to {
			path := []string{to}
			for u := prev[to]; u != ""; u = prev[u] {
				path = append([]string{u}, path...)
			}
			return cur.factor, path, true
		}
		for _, e := range s.edges[cur.unit] {
			if _, seen := prev[e.to]; seen {
				continue
			}
			prev[e.to] = cur.unit
			queue = append(queue, node{unit: e.to, factor: cur.factor.Mul(e.factor)})
		}
	}
	return decimal.Zero, nil, false
}

// ConvertToBaseUnit multiplies quantity by a per-unit conversion rate.
// A nil or non-positive rate means the quantity is already in base units.
func (s *UnitConversionService) ConvertToBaseUnit(quantity decimal.Decimal, conversionRate *decimal.Decimal) decimal.Decimal {
	if conversionRate == nil || !conversionRate.IsPositive() {
		return quantity
	}
	return quantity.Mul(*conversionRate)
}

// ValidateConversionRate validates a conversion rate
func (s *UnitConversionService) ValidateConversionRate(rate decimal.Decimal) error {
	if rate.IsZero() {
		return shared.NewDomainError("INVALID_CONVERSION_RATE", "Conversion rate cannot be zero")
	}
	if rate.IsNegative() {
		return shared.NewDomainError("INVALID_CONVERSION_RATE", "Conversion rate cannot be negative")
	}
	return nil
}
