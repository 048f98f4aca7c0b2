package workflow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/template"
)

// EvaluateCondition resolves the condition's field as a dot path against the
// execution data and applies the operator. A missing field resolves to nil,
// not an error; ordering operators never match an absent field. An unknown
// operator is logged and yields false so the walk continues down the false
// branch.
func EvaluateCondition(ctx context.Context, logger *slog.Logger, condition models.Condition, data map[string]any) bool {
	fieldValue, found := template.Resolve(condition.Field, data)

	switch condition.Operator {
	case models.OperatorEquals:
		return compareValues(fieldValue, condition.Value) == 0
	case models.OperatorNotEquals:
		return compareValues(fieldValue, condition.Value) != 0
	case models.OperatorContains:
		return strings.Contains(template.Stringify(fieldValue), template.Stringify(condition.Value))
	case models.OperatorNotContains:
		return !strings.Contains(template.Stringify(fieldValue), template.Stringify(condition.Value))
	case models.OperatorGreaterThan:
		return found && compareValues(fieldValue, condition.Value) > 0
	case models.OperatorLessThan:
		return found && compareValues(fieldValue, condition.Value) < 0
	case models.OperatorExists:
		return found
	case models.OperatorNotExists:
		return !found
	default:
		logger.WarnContext(ctx, "Unknown condition operator, evaluating to false",
			"operator", condition.Operator, "field", condition.Field)

		return false
	}
}

// compareValues compares numerically when both sides parse as numbers, and
// lexicographically on the stringified values otherwise.
func compareValues(left, right any) int {
	leftStr := template.Stringify(left)
	rightStr := template.Stringify(right)

	leftNum, leftErr := strconv.ParseFloat(leftStr, 64)
	rightNum, rightErr := strconv.ParseFloat(rightStr, 64)

	if leftErr == nil && rightErr == nil {
		switch {
		case leftNum < rightNum:
			return -1
		case leftNum > rightNum:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(leftStr, rightStr)
}
