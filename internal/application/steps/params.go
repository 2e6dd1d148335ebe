package steps

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/aescanero/synapse/pkg/domain"
)

// stringParam returns params[key] or def when absent. A present value that is
// not a string is an InvalidParams error.
func stringParam(params map[string]interface{}, key, def string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.NewStepError(domain.StepErrInvalidParams, "%q must be a string, got %T", key, raw)
	}
	return s, nil
}

// requiredString is stringParam without a default.
func requiredString(params map[string]interface{}, key string) (string, error) {
	s, err := stringParam(params, key, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", domain.NewStepError(domain.StepErrInvalidParams, "%q is required", key)
	}
	return s, nil
}

// intParam accepts integral JSON numbers and Go integer types.
func intParam(params map[string]interface{}, key string, def int64) (int64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, domain.NewStepError(domain.StepErrInvalidParams, "%q must be an integer, got %v", key, v)
		}
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, domain.NewStepError(domain.StepErrInvalidParams, "%q is out of range, got %v", key, v)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, domain.WrapStepError(domain.StepErrInvalidParams, err, "%q must be an integer", key)
		}
		return n, nil
	default:
		return 0, domain.NewStepError(domain.StepErrInvalidParams, "%q must be a number, got %T", key, raw)
	}
}

func floatParam(params map[string]interface{}, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, domain.WrapStepError(domain.StepErrInvalidParams, err, "%q must be a number", key)
		}
		return f, nil
	default:
		return 0, domain.NewStepError(domain.StepErrInvalidParams, "%q must be a number, got %T", key, raw)
	}
}

func boolParam(params map[string]interface{}, key string, def bool) (bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, domain.NewStepError(domain.StepErrInvalidParams, "%q must be a boolean, got %T", key, raw)
	}
	return b, nil
}

// upstreamText joins the "text" outputs of predecessors in ascending node id.
func upstreamText(upstream Upstream) string {
	ids := make([]string, 0, len(upstream))
	for id := range upstream {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var parts []string
	for _, id := range ids {
		if text, ok := upstream[id]["text"].(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
