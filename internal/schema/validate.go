package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValidatorVersion is recorded into validation_metadata on every document
// the pipeline accepts.
const ValidatorVersion = "3.1.0"

// FieldError is one violation, addressed by the exact document path,
// including array indices ("...test_runs[2].pass_rate").
type FieldError struct {
	FieldPath string `json:"field_path"`
	Message   string `json:"message"`
	Code      string `json:"code"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s [%s]", e.FieldPath, e.Message, e.Code)
}

// Report is the outcome of validating one document. Errors holds every
// violation found, in rule-table order.
type Report struct {
	SchemaVersion string       `json:"schema_version"`
	Passed        bool         `json:"passed"`
	Errors        []FieldError `json:"errors"`
}

// ParseError means the payload is not a JSON object at all, so no field
// checks could run.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse document: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedVersionError means the declared schema_version has no rule
// table registered.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	known := Versions()
	sort.Strings(known)
	return fmt.Sprintf("unsupported schema version %q (known: %s)", e.Version, strings.Join(known, ", "))
}

// Validate parses raw and runs every rule of the declared schema version
// against it. A returned Report with Passed=false still enumerates all
// violations; a nil Report with an error means the document never reached
// field checks (*ParseError or *UnsupportedVersionError).
func Validate(raw []byte) (*Report, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc == nil {
		return nil, &ParseError{Err: errors.New("document is not a JSON object")}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: errors.New("trailing data after document")}
	}
	return ValidateDocument(doc)
}

// ValidateDocument validates an already-decoded document.
func ValidateDocument(doc map[string]any) (*Report, error) {
	version, _ := doc["schema_version"].(string)
	def, ok := definitionFor(version)
	if !ok {
		return nil, &UnsupportedVersionError{Version: version}
	}

	var errs []FieldError
	for _, rule := range def.Rules {
		errs = append(errs, checkRule(doc, rule)...)
	}
	for _, group := range def.RequireOneOf {
		errs = append(errs, checkOneOf(doc, group)...)
	}

	return &Report{
		SchemaVersion: def.Version,
		Passed:        len(errs) == 0,
		Errors:        errs,
	}, nil
}

// site is one concrete location a rule path resolved to. A null value is
// treated as absent.
type site struct {
	path    string
	value   any
	present bool
}

// resolve expands a dot path against the document, fanning out over "[]"
// segments. Locations whose enclosing container is itself missing or
// mistyped are not emitted; the container's own rule reports those.
func resolve(container map[string]any, base string, segments []string) []site {
	seg := segments[0]
	iterate := strings.HasSuffix(seg, "[]")
	key := strings.TrimSuffix(seg, "[]")

	path := key
	if base != "" {
		path = base + "." + key
	}

	value, ok := container[key]
	if len(segments) == 1 && !iterate {
		return []site{{path: path, value: value, present: ok && value != nil}}
	}
	if !ok || value == nil {
		return nil
	}

	if iterate {
		items, ok := value.([]any)
		if !ok {
			return nil
		}
		var sites []site
		for i, item := range items {
			child, ok := item.(map[string]any)
			if !ok {
				continue
			}
			sites = append(sites, resolve(child, fmt.Sprintf("%s[%d]", path, i), segments[1:])...)
		}
		return sites
	}

	child, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return resolve(child, path, segments[1:])
}

func checkRule(doc map[string]any, rule Rule) []FieldError {
	var errs []FieldError
	for _, s := range resolve(doc, "", strings.Split(rule.Path, ".")) {
		if !s.present {
			if rule.Required {
				errs = append(errs, missingError(rule, s.path))
			}
			continue
		}
		if !kindMatches(rule.Kind, s.value) {
			errs = append(errs, FieldError{
				FieldPath: s.path,
				Message:   fmt.Sprintf("type mismatch: expected %s, got %s", rule.Kind, typeName(s.value)),
				Code:      "TYPE_MISMATCH",
			})
			continue
		}
		errs = append(errs, checkValue(rule, s)...)
	}
	return errs
}

func missingError(rule Rule, path string) FieldError {
	name := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		name = path[i+1:]
	}
	if rule.Kind == KindObject || rule.Kind == KindArray {
		return FieldError{
			FieldPath: path,
			Message:   fmt.Sprintf("missing required section '%s'", name),
			Code:      "REQUIRED_SECTION_MISSING",
		}
	}
	return FieldError{
		FieldPath: path,
		Message:   fmt.Sprintf("missing required field '%s'", name),
		Code:      "REQUIRED_FIELD_MISSING",
	}
}

func checkValue(rule Rule, s site) []FieldError {
	var errs []FieldError

	if len(rule.Enum) > 0 && !enumMatches(rule.Enum, s.value) {
		errs = append(errs, FieldError{
			FieldPath: s.path,
			Message:   fmt.Sprintf("invalid value %s: allowed values: %s", valueString(s.value), enumString(rule.Enum)),
			Code:      "INVALID_ENUM_VALUE",
		})
	}

	if rule.Pattern != nil {
		if str, ok := s.value.(string); ok && !rule.Pattern.MatchString(str) {
			code := rule.PatternCode
			if code == "" {
				code = "PATTERN_MISMATCH"
			}
			msg := fmt.Sprintf("value '%s' does not match required pattern", str)
			if code == "INVALID_TIMESTAMP_FORMAT" {
				msg = fmt.Sprintf("invalid timestamp format '%s': expected YYYY-MM-DDTHH:MM:SS[.SSS]Z", str)
			}
			errs = append(errs, FieldError{FieldPath: s.path, Message: msg, Code: code})
		}
	}

	if rule.Min != nil || rule.Max != nil {
		if num, ok := asFloat(s.value); ok {
			if rule.Min != nil && num < *rule.Min {
				errs = append(errs, FieldError{
					FieldPath: s.path,
					Message:   fmt.Sprintf("value %s is below minimum %s", formatNumber(num), formatNumber(*rule.Min)),
					Code:      "VALUE_BELOW_MINIMUM",
				})
			}
			if rule.Max != nil && num > *rule.Max {
				errs = append(errs, FieldError{
					FieldPath: s.path,
					Message:   fmt.Sprintf("value %s exceeds maximum %s", formatNumber(num), formatNumber(*rule.Max)),
					Code:      "VALUE_ABOVE_MAXIMUM",
				})
			}
		}
	}

	return errs
}

func checkOneOf(doc map[string]any, group OneOfGroup) []FieldError {
	sites := resolve(doc, "", strings.Split(group.ParentPath, "."))
	var errs []FieldError
	for _, s := range sites {
		if !s.present {
			continue
		}
		parent, ok := s.value.(map[string]any)
		if !ok {
			continue
		}
		found := false
		for _, key := range group.Keys {
			if v, ok := parent[key]; ok && v != nil {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, FieldError{FieldPath: s.path, Message: group.Message, Code: group.Code})
		}
	}
	return errs
}

func kindMatches(kind Kind, value any) bool {
	switch kind {
	case KindString:
		_, ok := value.(string)
		return ok
	case KindBoolean:
		_, ok := value.(bool)
		return ok
	case KindObject:
		_, ok := value.(map[string]any)
		return ok
	case KindArray:
		_, ok := value.([]any)
		return ok
	case KindInteger:
		switch v := value.(type) {
		case json.Number:
			_, err := v.Int64()
			return err == nil
		case float64:
			return v == math.Trunc(v)
		}
		return false
	case KindNumber:
		_, ok := asFloat(value)
		return ok
	}
	return false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	}
	return 0, false
}

func typeName(value any) string {
	switch v := value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return "integer"
		}
		return "number"
	case float64:
		if v == math.Trunc(v) {
			return "integer"
		}
		return "number"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", value)
}

func enumMatches(allowed []any, value any) bool {
	for _, a := range allowed {
		switch want := a.(type) {
		case string:
			if got, ok := value.(string); ok && got == want {
				return true
			}
		case int:
			if got, ok := asFloat(value); ok && got == float64(want) {
				return true
			}
		case float64:
			if got, ok := asFloat(value); ok && got == want {
				return true
			}
		}
	}
	return false
}

func enumString(allowed []any) string {
	parts := make([]string, len(allowed))
	for i, a := range allowed {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, ", ")
}

func valueString(value any) string {
	if s, ok := value.(string); ok {
		return "'" + s + "'"
	}
	return fmt.Sprint(value)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
