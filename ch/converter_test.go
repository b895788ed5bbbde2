package ch

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseColumnType(t *testing.T) {
	tests := []struct {
		name     string
		colType  string
		wantType ColumnType
		nullable bool
	}{
		{"c", "String", TypeString, false},
		{"c", "FixedString(16)", TypeString, false},
		{"c", "Int64", TypeInt, false},
		{"c", "UInt32", TypeInt, false},
		{"c", "Float64", TypeFloat, false},
		{"c", "Bool", TypeBool, false},
		{"c", "DateTime", TypeDateTime, false},
		{"c", "DateTime64(3)", TypeDateTime, false},
		{"c", "Date", TypeDateTime, false},
		{"c", "Decimal(18, 4)", TypeDecimal, false},
		{"c", "Nullable(String)", TypeString, true},
		{"c", "Nullable(Int32)", TypeInt, true},
		{"c", "Map(String, String)", TypeUnknown, false},
		{"c", "Array(Int64)", TypeUnknown, false},
		{"c", "Tuple(String, UInt8)", TypeUnknown, false},
		{"c", "Nested(id Int64, name String)", TypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.colType, func(t *testing.T) {
			col := parseColumnType(tt.name, tt.colType, "")
			if col.ParsedType != tt.wantType {
				t.Errorf("ParsedType = %v, want %v", col.ParsedType, tt.wantType)
			}
			if col.IsNullable != tt.nullable {
				t.Errorf("IsNullable = %v, want %v", col.IsNullable, tt.nullable)
			}
		})
	}
}

func TestParseDefaultValue(t *testing.T) {
	if got := parseDefaultValue("42", TypeInt); got != int64(42) {
		t.Errorf("int default = %v, want 42", got)
	}
	if got := parseDefaultValue("3.14", TypeFloat); got != 3.14 {
		t.Errorf("float default = %v, want 3.14", got)
	}
	if got := parseDefaultValue("'pending'", TypeString); got != "pending" {
		t.Errorf("string default = %v, want pending", got)
	}
	if got := parseDefaultValue("1", TypeBool); got != true {
		t.Errorf("bool default = %v, want true", got)
	}

	fn, ok := parseDefaultValue("now64(3)", TypeDateTime).(*DefaultFunc)
	if !ok || fn.Name != "now64" {
		t.Fatalf("now64(3) default = %v, want DefaultFunc", fn)
	}
	if _, ok := fn.Evaluate().(time.Time); !ok {
		t.Error("now64 should evaluate to a time.Time")
	}
}

func TestGetZeroValue(t *testing.T) {
	if v := getZeroValue(&TableColumn{ParsedType: TypeString}); v != "" {
		t.Errorf("string zero = %v", v)
	}
	if v := getZeroValue(&TableColumn{ParsedType: TypeInt}); v != int64(0) {
		t.Errorf("int zero = %v", v)
	}
	if v := getZeroValue(&TableColumn{ParsedType: TypeDateTime}); v != chMinTime {
		t.Errorf("datetime zero = %v, want epoch", v)
	}
	if v := getZeroValue(&TableColumn{ParsedType: TypeString, IsNullable: true}); v != nil {
		t.Errorf("nullable zero = %v, want nil", v)
	}
}

func TestIntConverter(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{int64(7), 7},
		{42, 42},
		{int32(5), 5},
		{uint64(9), 9},
		{3.9, 3},
		{true, 1},
		{"123", 123},
		{"not a number", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		got, err := intConverter.Convert(tt.in, nil)
		if err != nil || got != tt.want {
			t.Errorf("Convert(%v) = (%v, %v), want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestStringConverter(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"s", "s"},
		{[]byte("b"), "b"},
		{42, "42"},
		{3.5, "3.5"},
		{true, "true"},
	}
	for _, tt := range tests {
		got, err := stringConverter.Convert(tt.in, nil)
		if err != nil || got != tt.want {
			t.Errorf("Convert(%v) = (%v, %v), want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestFloatConverter(t *testing.T) {
	if got, _ := floatConverter.Convert(int64(2), nil); got != 2.0 {
		t.Errorf("Convert(2) = %v, want 2.0", got)
	}
	if got, _ := floatConverter.Convert("2.5", nil); got != 2.5 {
		t.Errorf("Convert(\"2.5\") = %v, want 2.5", got)
	}
	if got, _ := floatConverter.Convert("junk", nil); got != 0.0 {
		t.Errorf("Convert(junk) = %v, want 0.0", got)
	}
}

func TestDecimalConverter(t *testing.T) {
	want := decimal.NewFromFloat(12.34)

	got, _ := decimalConverter.Convert("12.34", nil)
	if d, ok := got.(decimal.Decimal); !ok || !d.Equal(want) {
		t.Errorf("Convert(\"12.34\") = %v, want %v", got, want)
	}
	got, _ = decimalConverter.Convert(12.34, nil)
	if d, ok := got.(decimal.Decimal); !ok || !d.Equal(want) {
		t.Errorf("Convert(12.34) = %v, want %v", got, want)
	}
	got, _ = decimalConverter.Convert("junk", nil)
	if d, ok := got.(decimal.Decimal); !ok || !d.Equal(decimal.Zero) {
		t.Errorf("Convert(junk) = %v, want zero", got)
	}
}

func TestBoolConverter(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{0, false},
		{int64(2), true},
		{"1", true},
		{"false", false},
	}
	for _, tt := range tests {
		if got, _ := boolConverter.Convert(tt.in, nil); got != tt.want {
			t.Errorf("Convert(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDateTimeConverter(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	got, _ := dateTimeConverter.Convert(now, nil)
	if got != now {
		t.Errorf("Convert(time) = %v, want %v", got, now)
	}

	got, _ = dateTimeConverter.Convert(now.Unix(), nil)
	if got != now {
		t.Errorf("Convert(unix) = %v, want %v", got, now)
	}

	got, _ = dateTimeConverter.Convert(now.Format(time.RFC3339), nil)
	if got != now {
		t.Errorf("Convert(rfc3339) = %v, want %v", got, now)
	}

	// Pre-epoch times clamp to the ClickHouse minimum.
	got, _ = dateTimeConverter.Convert(time.Time{}, nil)
	if got != chMinTime {
		t.Errorf("Convert(zero time) = %v, want epoch", got)
	}
}

func TestGetConverter(t *testing.T) {
	if getConverter(&TableColumn{ParsedType: TypeInt}) != intConverter {
		t.Error("TypeInt should use intConverter")
	}
	if getConverter(&TableColumn{ParsedType: TypeUnknown}) != passConverter {
		t.Error("TypeUnknown should use passConverter")
	}
}
