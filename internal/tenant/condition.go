package tenant

import (
	"fmt"
	"gorm.io/gorm"
	"regexp"
	"strings"
)

type QueryCondition struct {
	Field    string      // Field name
	Operator string      // Operator (e.g., "=", "<", ">", "LIKE"); empty means "="
	Value    interface{} // Value to compare against
}

// Eq is shorthand for an equality condition.
func Eq(field string, value interface{}) QueryCondition {
	return QueryCondition{Field: field, Operator: "=", Value: value}
}

var operators = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true, "IN": true, "NOT IN": true, "LIKE": true,
}

var fieldName = regexp.MustCompile(`^[a-z_]+(\.[a-z_]+)?$`)

func applyConditions(query *gorm.DB, conds []QueryCondition) (*gorm.DB, error) {
	for _, cond := range conds {
		if !fieldName.MatchString(cond.Field) {
			return nil, fmt.Errorf("invalid condition field %q", cond.Field)
		}
		if cond.Field == "tenant_id" || strings.HasSuffix(cond.Field, ".tenant_id") {
			return nil, fmt.Errorf("tenant_id is bound by the scope and cannot be filtered on")
		}
		op := strings.ToUpper(strings.TrimSpace(cond.Operator))
		if op == "" {
			op = "="
		}
		if !operators[op] {
			return nil, fmt.Errorf("invalid condition operator %q", cond.Operator)
		}
		if op == "IN" || op == "NOT IN" {
			query = query.Where(fmt.Sprintf("%s %s (?)", cond.Field, op), cond.Value)
			continue
		}
		query = query.Where(fmt.Sprintf("%s %s ?", cond.Field, op), cond.Value)
	}
	return query, nil
}
