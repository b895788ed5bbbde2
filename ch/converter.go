package ch

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dailyyoga/datakit/logger"
)

// ColumnType is the category of a ClickHouse column type.
type ColumnType int

const (
	TypeUnknown ColumnType = iota
	TypeString
	TypeInt
	TypeFloat
	TypeDecimal
	TypeBool
	TypeDateTime
)

// chMinTime is the minimum valid ClickHouse DateTime (1970-01-01 UTC).
// Go's zero time (0001-01-01) is outside the supported range.
var chMinTime = time.Unix(0, 0).UTC()

// DefaultFunc is a ClickHouse default expression evaluated at insert
// time, such as now() or today().
type DefaultFunc struct {
	Name string
}

// Evaluate evaluates the default function.
func (f *DefaultFunc) Evaluate() any {
	switch strings.ToLower(f.Name) {
	case "now", "now64":
		return time.Now().UTC()
	case "today":
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return nil
	}
}

// TableColumn is a ClickHouse column with parsed metadata.
type TableColumn struct {
	Name         string
	OriginalType string
	BaseType     string // type without the Nullable wrapper
	ParsedType   ColumnType
	IsNullable   bool
	DefaultValue any
}

// parseColumnType parses a ClickHouse type string into a TableColumn.
func parseColumnType(name, colType, defaultExpr string) TableColumn {
	col := TableColumn{
		Name:         name,
		OriginalType: colType,
		BaseType:     colType,
	}

	if strings.HasPrefix(colType, "Nullable(") {
		col.IsNullable = true
		col.BaseType = strings.TrimSuffix(strings.TrimPrefix(colType, "Nullable("), ")")
	}

	baseUpper := strings.ToUpper(col.BaseType)

	// Classify on the outer type token so the parameter list of a
	// composite such as Map(String, String) or Array(Int64) cannot
	// match a scalar case. Composites pass through to the driver.
	outer := baseUpper
	if idx := strings.Index(outer, "("); idx >= 0 {
		outer = outer[:idx]
	}

	switch outer {
	case "MAP", "ARRAY", "TUPLE", "NESTED":
		col.ParsedType = TypeUnknown
	default:
		// Ordered by frequency; Date folds into DateTime handling.
		switch {
		case strings.Contains(baseUpper, "INT"):
			col.ParsedType = TypeInt
		case strings.Contains(baseUpper, "STRING") || strings.Contains(baseUpper, "FIXEDSTRING"):
			col.ParsedType = TypeString
		case strings.Contains(baseUpper, "FLOAT"):
			col.ParsedType = TypeFloat
		case strings.Contains(baseUpper, "BOOL"):
			col.ParsedType = TypeBool
		case strings.Contains(baseUpper, "DATETIME") || strings.Contains(baseUpper, "DATE"):
			col.ParsedType = TypeDateTime
		case strings.Contains(baseUpper, "DECIMAL"):
			col.ParsedType = TypeDecimal
		default:
			col.ParsedType = TypeUnknown
		}
	}

	if defaultExpr != "" {
		col.DefaultValue = parseDefaultValue(defaultExpr, col.ParsedType)
	}
	return col
}

// parseDefaultValue parses a default expression for the column type.
func parseDefaultValue(expr string, parsedType ColumnType) any {
	expr = strings.TrimSpace(expr)

	// Function-call defaults evaluate at insert time.
	if idx := strings.Index(expr, "("); idx > 0 && strings.HasSuffix(expr, ")") {
		name := strings.ToLower(expr[:idx])
		switch name {
		case "now", "now64", "today":
			return &DefaultFunc{Name: name}
		}
	}

	if strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'") {
		return strings.Trim(expr, "'")
	}

	switch parsedType {
	case TypeInt:
		if val, err := strconv.ParseInt(expr, 10, 64); err == nil {
			return val
		}
		return int64(0)
	case TypeFloat:
		if val, err := strconv.ParseFloat(expr, 64); err == nil {
			return val
		}
		return 0.0
	case TypeDecimal:
		if d, err := decimal.NewFromString(expr); err == nil {
			return d
		}
		return decimal.Zero
	case TypeBool:
		return expr == "true" || expr == "1"
	default:
		return expr
	}
}

// getZeroValue returns the insert value for an absent column.
func getZeroValue(col *TableColumn) any {
	if col.IsNullable {
		return nil
	}

	switch col.ParsedType {
	case TypeString:
		return ""
	case TypeInt:
		return int64(0)
	case TypeFloat:
		return 0.0
	case TypeDecimal:
		return decimal.Zero
	case TypeBool:
		return false
	case TypeDateTime:
		return chMinTime
	default:
		return nil
	}
}

// ValueConverter coerces a row value to the column's native type.
type ValueConverter interface {
	Convert(val any, log logger.Logger) (any, error)
}

var (
	stringConverter   = &StringConverter{}
	intConverter      = &IntConverter{}
	floatConverter    = &FloatConverter{}
	decimalConverter  = &DecimalConverter{}
	boolConverter     = &BoolConverter{}
	dateTimeConverter = &DateTimeConverter{}
	passConverter     = &PassthroughConverter{}
)

// getConverter returns the converter for col's parsed type.
func getConverter(col *TableColumn) ValueConverter {
	switch col.ParsedType {
	case TypeString:
		return stringConverter
	case TypeInt:
		return intConverter
	case TypeFloat:
		return floatConverter
	case TypeDecimal:
		return decimalConverter
	case TypeBool:
		return boolConverter
	case TypeDateTime:
		return dateTimeConverter
	default:
		return passConverter
	}
}

// StringConverter converts values to strings.
type StringConverter struct{}

func (c *StringConverter) Convert(val any, log logger.Logger) (any, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	default:
		return "", nil
	}
}

// IntConverter converts values to int64.
type IntConverter struct{}

func (c *IntConverter) Convert(val any, log logger.Logger) (any, error) {
	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > 1<<63-1 {
			return int64(1<<63 - 1), nil
		}
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		if log != nil {
			log.Warn("failed to convert json.Number to int64, using zero", zap.String("value", v.String()))
		}
		return int64(0), nil
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, nil
		}
		if log != nil {
			log.Warn("failed to convert string to int64, using zero", zap.String("value", v))
		}
		return int64(0), nil
	default:
		return int64(0), nil
	}
}

// FloatConverter converts values to float64.
type FloatConverter struct{}

func (c *FloatConverter) Convert(val any, log logger.Logger) (any, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
		if log != nil {
			log.Warn("failed to convert json.Number to float64, using zero", zap.String("value", v.String()))
		}
		return 0.0, nil
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
		if log != nil {
			log.Warn("failed to convert string to float64, using zero", zap.String("value", v))
		}
		return 0.0, nil
	default:
		return 0.0, nil
	}
}

// DecimalConverter converts values to decimal.Decimal.
type DecimalConverter struct{}

func (c *DecimalConverter) Convert(val any, log logger.Logger) (any, error) {
	switch v := val.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d, nil
		}
		if log != nil {
			log.Warn("failed to convert json.Number to decimal, using zero", zap.String("value", v.String()))
		}
		return decimal.Zero, nil
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d, nil
		}
		if log != nil {
			log.Warn("failed to convert string to decimal, using zero", zap.String("value", v))
		}
		return decimal.Zero, nil
	default:
		return decimal.Zero, nil
	}
}

// BoolConverter converts values to bool.
type BoolConverter struct{}

func (c *BoolConverter) Convert(val any, log logger.Logger) (any, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return v == "true" || v == "1", nil
	default:
		return false, nil
	}
}

// DateTimeConverter converts values to time.Time, clamped to the
// ClickHouse-supported range.
type DateTimeConverter struct{}

func (c *DateTimeConverter) Convert(val any, log logger.Logger) (any, error) {
	switch v := val.(type) {
	case time.Time:
		if v.Before(chMinTime) {
			return chMinTime, nil
		}
		return v, nil
	case int64:
		// Unix seconds.
		return time.Unix(v, 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case float64:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		if log != nil {
			log.Warn("failed to parse datetime string, using epoch", zap.String("value", v))
		}
		return chMinTime, nil
	default:
		return chMinTime, nil
	}
}

// PassthroughConverter hands the value to the driver as-is.
type PassthroughConverter struct{}

func (c *PassthroughConverter) Convert(val any, log logger.Logger) (any, error) {
	return val, nil
}
