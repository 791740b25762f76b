package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// pauliPattern accepts space separated Pauli factors such as "X0 Y1 Z 2".
var pauliPattern = regexp.MustCompile(`^\s*[XYZI]\s*\d+(\s+[XYZI]\s*\d+)*\s*$`)

// OperatorTerm is one Pauli string with its complex coefficient.
type OperatorTerm struct {
	Pauli string
	Coef  [2]float64
}

// MarshalJSON encodes the term as ["Z0 Z1",[re,im]].
func (o OperatorTerm) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{o.Pauli, []float64{o.Coef[0], o.Coef[1]}})
}

// UnmarshalJSON accepts the stored form written by MarshalJSON.
func (o *OperatorTerm) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &o.Pauli); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &o.Coef)
}

// ParseOperator decodes a submitted operator: a non-empty JSON array of
// [pauli, coef] pairs. coef may be a number, [re] or [re, im]; numeric
// strings are accepted. Errors are Rejections on the operator field.
func ParseOperator(raw json.RawMessage) ([]OperatorTerm, error) {
	terms, r := parseOperator(raw)
	if r != nil {
		return nil, r
	}
	return terms, nil
}

func parseOperator(raw json.RawMessage) ([]OperatorTerm, *Rejection) {
	var ops any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if len(bytes.TrimSpace(raw)) == 0 || dec.Decode(&ops) != nil {
		return nil, reject("operator", "Malformed operator format: %s", string(raw))
	}

	list, ok := ops.([]any)
	if !ok || len(list) == 0 {
		return nil, reject("operator", "Malformed operator format: %s", render(ops))
	}

	terms := make([]OperatorTerm, 0, len(list))
	for _, entry := range list {
		pair, ok := entry.([]any)
		if !ok || len(pair) != 2 {
			return nil, reject("operator", "Malformed operator format: %s", render(entry))
		}

		pauli, ok := pair[0].(string)
		if !ok || !pauliPattern.MatchString(pauli) {
			return nil, reject("operator", "Malformed operator format: malformed Pauli string: %s", render(entry))
		}

		coef, ok := parseCoef(pair[1])
		if !ok {
			return nil, reject("operator", "Malformed operator format: malformed coef value: %s", render(entry))
		}
		terms = append(terms, OperatorTerm{Pauli: pauli, Coef: coef})
	}
	return terms, nil
}

func parseCoef(v any) ([2]float64, bool) {
	if parts, ok := v.([]any); ok {
		switch len(parts) {
		case 1:
			re, ok := toFloat(parts[0])
			return [2]float64{re, 0}, ok
		case 2:
			re, okRe := toFloat(parts[0])
			im, okIm := toFloat(parts[1])
			return [2]float64{re, im}, okRe && okIm
		default:
			return [2]float64{}, false
		}
	}
	re, ok := toFloat(v)
	return [2]float64{re, 0}, ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

// render prints a decoded JSON value back in compact form for messages.
func render(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// encodeOperator returns the stored JSON text, or nil for no operator.
func encodeOperator(terms []OperatorTerm) (any, error) {
	if terms == nil {
		return nil, nil
	}
	b, err := json.Marshal(terms)
	if err != nil {
		return nil, fmt.Errorf("marshalling operator: %w", err)
	}
	return string(b), nil
}

func decodeOperator(s string) ([]OperatorTerm, error) {
	var terms []OperatorTerm
	if err := json.Unmarshal([]byte(s), &terms); err != nil {
		return nil, fmt.Errorf("unmarshalling operator: %w", err)
	}
	return terms, nil
}
