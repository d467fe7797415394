// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"encoding/json"
	"strconv"
)

// MetricRow is the single output unit of every calculator.
// It is the only shape the report writers understand.
type MetricRow struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Metric   string `json:"metric"`
	Value    Value  `json:"value"`
}

// Value is either a plain number or an opaque string-encoded composite.
type Value struct {
	num   float64
	text  string
	isStr bool
}

// Number wraps a numeric metric value.
func Number(v float64) Value {
	return Value{num: v}
}

// Text wraps an opaque string metric value.
func Text(s string) Value {
	return Value{text: s, isStr: true}
}

// IsText reports whether the value carries a string.
func (v Value) IsText() bool {
	return v.isStr
}

// Float returns the numeric value; it is 0 for text values.
func (v Value) Float() float64 {
	return v.num
}

// String formats the value the way report writers emit it.
// Integral numbers are written without a fractional part.
func (v Value) String() string {
	if v.isStr {
		return v.text
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isStr {
		return json.Marshal(v.text)
	}
	return json.Marshal(v.num)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}

// NewRow builds a numeric MetricRow.
func NewRow(date, category, metric string, value float64) MetricRow {
	return MetricRow{Date: date, Category: category, Metric: metric, Value: Number(value)}
}
