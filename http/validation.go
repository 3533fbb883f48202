package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"irisapi/ml"
)

// FieldError is one entry of a 422 response body.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fmt.Sprintf("%s: %s", strings.Join(fe.Loc, "."), fe.Msg)
	}
	return strings.Join(parts, "; ")
}

var errBodyTooLarge = errors.New("request body too large")

// decodePredictionRequest requires every measurement to be present as a JSON
// number. Unknown fields are ignored. All field problems are reported
// together.
func decodePredictionRequest(body io.Reader) (ml.PredictionRequest, error) {
	var req ml.PredictionRequest

	payload, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, errBodyTooLarge
		}
		return req, ValidationErrors{{Loc: []string{"body"}, Msg: "Could not read request body", Type: "body_read"}}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return req, ValidationErrors{{Loc: []string{"body"}, Msg: "Input should be a valid dictionary", Type: "dict_type"}}
		}
		return req, ValidationErrors{{Loc: []string{"body"}, Msg: "JSON decode error", Type: "json_invalid"}}
	}
	if raw == nil {
		return req, ValidationErrors{{Loc: []string{"body"}, Msg: "Input should be a valid dictionary", Type: "dict_type"}}
	}

	targets := map[string]*float64{
		ml.FeatureSepalLength: &req.SepalLength,
		ml.FeatureSepalWidth:  &req.SepalWidth,
		ml.FeaturePetalLength: &req.PetalLength,
		ml.FeaturePetalWidth:  &req.PetalWidth,
	}
	var errs ValidationErrors
	for _, name := range ml.FeatureNames() {
		value, ok := raw[name]
		if !ok {
			errs = append(errs, FieldError{Loc: []string{"body", name}, Msg: "Field required", Type: "missing"})
			continue
		}
		if !isJSONNumber(value) || json.Unmarshal(value, targets[name]) != nil {
			errs = append(errs, FieldError{Loc: []string{"body", name}, Msg: "Input should be a valid number", Type: "float_type"})
		}
	}
	if len(errs) > 0 {
		return ml.PredictionRequest{}, errs
	}
	return req, nil
}

// isJSONNumber rejects null, strings, booleans and containers, all of which
// json.Unmarshal would otherwise either accept silently or coerce.
func isJSONNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return c == '-' || (c >= '0' && c <= '9')
}
