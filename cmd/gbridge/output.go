package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/graphbridge/internal/errors"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// render writes v to stdout in the --output format
func render(v any) error {
	return renderTo(os.Stdout, outputFormat, v)
}

func renderTo(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return errors.ValidationErrorf("unknown output format %q (want yaml or json)", format)
}

// parseProps builds a property map from a JSON object and key=value pairs.
// Pair values are read as JSON when they parse (numbers, booleans, lists,
// objects, quoted strings) and as plain strings otherwise.
func parseProps(jsonObject string, pairs []string) (map[string]any, error) {
	props := make(map[string]any)
	if strings.TrimSpace(jsonObject) != "" {
		dec := json.NewDecoder(strings.NewReader(jsonObject))
		dec.UseNumber()
		if err := dec.Decode(&props); err != nil {
			return nil, errors.ValidationErrorf("--props is not a JSON object: %v", err)
		}
	}
	for _, pair := range pairs {
		k, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.ValidationErrorf("property %q is not key=value", pair)
		}
		props[strings.TrimSpace(k)] = literal(raw)
	}
	return jsonNumbers(props).(map[string]any), nil
}

func literal(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}

// jsonNumbers turns json.Number into int64 when integral, float64 otherwise
func jsonNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = jsonNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = jsonNumbers(e)
		}
		return t
	}
	return v
}

// parsePropertyDefs parses name:type[:flag...] definitions where the flags
// are indexed and required, e.g. "name:string:indexed" or "age:long"
func parsePropertyDefs(defs []string) ([]model.PropertyDefinition, error) {
	out := make([]model.PropertyDefinition, 0, len(defs))
	for _, def := range defs {
		parts := strings.Split(def, ":")
		if len(parts) < 2 || parts[0] == "" {
			return nil, errors.ValidationErrorf("property definition %q is not name:type[:indexed][:required]", def)
		}
		pt := model.PropertyType(strings.ToUpper(parts[1]))
		switch pt {
		case model.PropertyString, model.PropertyLong, model.PropertyDouble, model.PropertyBoolean,
			model.PropertyDate, model.PropertyDateTime, model.PropertyList, model.PropertyMap:
		default:
			return nil, errors.ValidationErrorf("property %s has unknown type %q", parts[0], parts[1])
		}
		pd := model.PropertyDefinition{Name: parts[0], Type: pt}
		for _, flag := range parts[2:] {
			switch strings.ToLower(flag) {
			case "indexed", "index":
				pd.Indexed = true
			case "required":
				pd.Required = true
			default:
				return nil, errors.ValidationErrorf("property %s has unknown flag %q", parts[0], flag)
			}
		}
		out = append(out, pd)
	}
	return out, nil
}

// statusLine prints a one-line confirmation to stderr so stdout stays
// parseable
func statusLine(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
