package features

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Column names in the order the pipeline was fitted with.
const (
	EmploymentStatus       = "employment_status"
	CreditUtilizationRatio = "credit_utilization_ratio"
	PaymentHistory         = "payment_history"
	OriginalLoanAmount     = "original_loan_amount"
	LoanTerm               = "loan_term"
	PersonIncome           = "person_income"
	LoanAmount             = "loan_amnt"
	LoanPercentIncome      = "loan_percent_income"
	DefaultOnFile          = "cb_person_default_on_file"
	CreditHistoryLength    = "cb_person_cred_hist_length"
)

const expectedColumnCount = 10

var columns = [expectedColumnCount]string{
	EmploymentStatus,
	CreditUtilizationRatio,
	PaymentHistory,
	OriginalLoanAmount,
	LoanTerm,
	PersonIncome,
	LoanAmount,
	LoanPercentIncome,
	DefaultOnFile,
	CreditHistoryLength,
}

var categorical = map[string]bool{
	EmploymentStatus: true,
	DefaultOnFile:    true,
}

// Columns returns a copy of the expected input columns in fitted order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns[:])
	return out
}

// IsCategorical reports whether the named column holds string categories.
func IsCategorical(name string) bool {
	return categorical[name]
}

// Kind distinguishes the states a feature value can be in.
type Kind uint8

const (
	// Missing marks a field that was absent or null in the request.
	Missing Kind = iota
	Numeric
	Categorical
)

// Value is a single feature cell.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
}

// Number builds a numeric value.
func Number(v float64) Value { return Value{Kind: Numeric, Num: v} }

// Category builds a categorical value.
func Category(v string) Value { return Value{Kind: Categorical, Str: v} }

// IsMissing reports whether the value carries the missing sentinel.
func (v Value) IsMissing() bool { return v.Kind == Missing }

// Float returns the numeric reading of the value, NaN when missing.
func (v Value) Float() float64 {
	if v.Kind != Numeric {
		return math.NaN()
	}
	return v.Num
}

// MarshalJSON renders missing values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Numeric:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.Num)
	case Categorical:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case Numeric:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case Categorical:
		return v.Str
	default:
		return "NaN"
	}
}

// Record is one applicant, one value per expected column.
type Record struct {
	values [expectedColumnCount]Value
}

// Get returns the value stored for the named column.
func (r Record) Get(name string) (Value, bool) {
	idx := indexOf(name)
	if idx < 0 {
		return Value{}, false
	}
	return r.values[idx], true
}

// At returns the value at the fitted column position.
func (r Record) At(i int) Value {
	return r.values[i]
}

// MissingColumns lists the columns holding the missing sentinel.
func (r Record) MissingColumns() []string {
	var out []string
	for i, v := range r.values {
		if v.IsMissing() {
			out = append(out, columns[i])
		}
	}
	return out
}

// Map renders the record keyed by column name.
func (r Record) Map() map[string]Value {
	out := make(map[string]Value, len(columns))
	for i, v := range r.values {
		out[columns[i]] = v
	}
	return out
}

// MarshalJSON encodes the record as an object keyed by column name.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

func (r Record) String() string {
	parts := make([]string, len(columns))
	for i, v := range r.values {
		parts[i] = columns[i] + "=" + v.String()
	}
	return strings.Join(parts, " ")
}

func indexOf(name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
