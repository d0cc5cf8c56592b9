package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Assemble builds a Record from a decoded request map. Assembly is keyed by
// the expected column list: unknown keys are dropped and absent or null keys
// become Missing.
func Assemble(input map[string]any) (Record, error) {
	var rec Record
	for i, name := range columns {
		raw, ok := input[name]
		if !ok || raw == nil {
			continue
		}
		var (
			v   Value
			err error
		)
		if categorical[name] {
			v, err = categoryFrom(raw)
		} else {
			v, err = numberFrom(raw)
		}
		if err != nil {
			return Record{}, fmt.Errorf("feature %s: %w", name, err)
		}
		rec.values[i] = v
	}
	return rec, nil
}

func numberFrom(raw any) (Value, error) {
	switch t := raw.(type) {
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("could not convert %q to float", t.String())
		}
		return finite(f)
	case bool:
		if t {
			return Number(1), nil
		}
		return Number(0), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return Value{}, fmt.Errorf("could not convert string to float: %q", t)
		}
		return finite(f)
	default:
		return Value{}, fmt.Errorf("unsupported value type %T for numeric feature", raw)
	}
}

// finite maps NaN to Missing and rejects infinities.
func finite(f float64) (Value, error) {
	switch {
	case math.IsNaN(f):
		return Value{}, nil
	case math.IsInf(f, 0):
		return Value{}, errors.New("input contains infinity")
	}
	return Number(f), nil
}

func categoryFrom(raw any) (Value, error) {
	s, ok := raw.(string)
	if !ok {
		return Value{}, fmt.Errorf("unsupported value type %T for categorical feature", raw)
	}
	return Category(s), nil
}

// NormalizeEmployment maps stored employment statuses onto the categories the
// model was trained with.
func NormalizeEmployment(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "EMPLOYED", "YES":
		return "Yes"
	case "SELF_EMPLOYED", "SELF-EMPLOYED":
		return "Self-Employed"
	default:
		return "No"
	}
}
