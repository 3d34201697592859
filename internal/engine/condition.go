package engine

import (
	"math"

	"github.com/temcen/retouch/pkg/models"
)

// Operator compares an extracted factor value with a threshold.
type Operator string

const (
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpEqualTo        Operator = "equal_to"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
)

// equalityTolerance is the absolute distance under which equal_to holds.
const equalityTolerance = 0.01

func (op Operator) IsValid() bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpEqualTo, OpGreaterOrEqual, OpLessOrEqual:
		return true
	}
	return false
}

func (op Operator) symbol() string {
	switch op {
	case OpGreaterThan:
		return "above"
	case OpLessThan:
		return "below"
	case OpEqualTo:
		return "at"
	case OpGreaterOrEqual:
		return "at least"
	case OpLessOrEqual:
		return "at most"
	}
	return string(op)
}

// Evaluate applies op to value and threshold. Unknown operators never hold.
func Evaluate(op Operator, value, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return value > threshold
	case OpLessThan:
		return value < threshold
	case OpEqualTo:
		return math.Abs(value-threshold) < equalityTolerance
	case OpGreaterOrEqual:
		return value >= threshold
	case OpLessOrEqual:
		return value <= threshold
	}
	return false
}

// ApplicabilityCondition is a hard gate on a profile or an operation.
type ApplicabilityCondition struct {
	Factor    Factor   `json:"factor" yaml:"factor"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
	Operator  Operator `json:"operator" yaml:"operator"`
}

func (c ApplicabilityCondition) Holds(analysis *models.AnalysisSnapshot, user UserSignals) bool {
	return Evaluate(c.Operator, ExtractFactor(c.Factor, analysis, user), c.Threshold)
}

// allHold is the AND over conditions; an empty list always holds.
func allHold(conditions []ApplicabilityCondition, analysis *models.AnalysisSnapshot, user UserSignals) bool {
	for _, c := range conditions {
		if !c.Holds(analysis, user) {
			return false
		}
	}
	return true
}
