package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingNumber matches amounts like "12", "4.5g" or "230 kcal".
var leadingNumber = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)

// ParseNutrition parses a serialized nutrient payload into amounts keyed by
// lowercase nutrient name. The payload may be a JSON object or a JSON string
// holding one. Values that are not numbers or numeric-prefixed strings are
// skipped. A malformed payload returns an empty map and false.
func ParseNutrition(payload []byte) (map[string]float64, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]float64{}, true
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return map[string]float64{}, false
		}
		trimmed = bytes.TrimSpace([]byte(inner))
		if len(trimmed) == 0 {
			return map[string]float64{}, true
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return map[string]float64{}, false
	}

	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		switch t := v.(type) {
		case float64:
			out[key] = t
		case string:
			if m := leadingNumber.FindStringSubmatch(t); m != nil {
				if f, err := strconv.ParseFloat(m[1], 64); err == nil {
					out[key] = f
				}
			}
		}
	}
	return out, true
}

// MacroTotals is a per-identity running nutrition aggregate.
type MacroTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Validate checks that every field is a finite non-negative number.
func (m MacroTotals) Validate() error {
	fields := map[string]float64{
		"calories": m.Calories,
		"protein":  m.Protein,
		"carbs":    m.Carbs,
		"fat":      m.Fat,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("invalid macro total %s: %v", name, v)
		}
	}
	return nil
}

// IsZero returns true if every field is zero.
func (m MacroTotals) IsZero() bool {
	return m == MacroTotals{}
}

// Scale multiplies every field by factor.
func (m MacroTotals) Scale(factor float64) MacroTotals {
	return MacroTotals{
		Calories: m.Calories * factor,
		Protein:  m.Protein * factor,
		Carbs:    m.Carbs * factor,
		Fat:      m.Fat * factor,
	}
}

// Add returns the field-wise sum of m and o.
func (m MacroTotals) Add(o MacroTotals) MacroTotals {
	return MacroTotals{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fat:      m.Fat + o.Fat,
	}
}

// Nutrient name aliases as they appear in scraped nutrition tables.
var macroAliases = map[string][]string{
	"calories": {"calories", "kcal", "energy"},
	"protein":  {"protein", "protein (g)"},
	"carbs":    {"carbs", "carbohydrates", "total carbohydrate", "total carbohydrates", "carbohydrate"},
	"fat":      {"fat", "total fat", "fat (g)"},
}

// MacrosFromNutrition picks the four tracked macros out of a parsed
// nutrient map. Missing nutrients count as zero.
func MacrosFromNutrition(info map[string]float64) MacroTotals {
	pick := func(name string) float64 {
		for _, alias := range macroAliases[name] {
			if v, ok := info[alias]; ok {
				return v
			}
		}
		return 0
	}
	return MacroTotals{
		Calories: pick("calories"),
		Protein:  pick("protein"),
		Carbs:    pick("carbs"),
		Fat:      pick("fat"),
	}
}
