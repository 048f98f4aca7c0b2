package models

// ConditionOperator is the comparison applied by a condition node predicate.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "notEquals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "notContains"
	OperatorGreaterThan ConditionOperator = "greaterThan"
	OperatorLessThan    ConditionOperator = "lessThan"
	OperatorExists      ConditionOperator = "exists"
	OperatorNotExists   ConditionOperator = "notExists"
)

// Condition is a declarative predicate over execution data. Field is a
// dot-separated path; a missing path resolves to absent, not an error.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}
