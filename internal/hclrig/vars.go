package hclrig

import (
	"fmt"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// BuildVars merges variable definitions for the rig evaluation context.
// Files are applied in order, then -var flags on top, so a flag always
// wins over a file.
func BuildVars(files []string, flags []string) (map[string]cty.Value, error) {
	vars := make(map[string]cty.Value)

	for _, file := range files {
		fromFile, err := loadVarFile(file)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			vars[k] = v
		}
	}

	for _, raw := range flags {
		name, val, err := parseVarFlag(raw)
		if err != nil {
			return nil, err
		}
		vars[name] = val
	}

	return vars, nil
}

// parseVarFlag splits a -var value of the form "name=value". The value is
// kept as a string; HCL converts it where the rig demands another type.
func parseVarFlag(raw string) (string, cty.Value, error) {
	name, value, found := strings.Cut(raw, "=")
	if !found || name == "" {
		return "", cty.NilVal, fmt.Errorf("invalid -var %q: expected name=value", raw)
	}
	return name, cty.StringVal(value), nil
}

// loadVarFile reads a YAML mapping of variable names to values.
func loadVarFile(path string) (map[string]cty.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read var file %q: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse var file %q: %w", path, err)
	}

	vars := make(map[string]cty.Value, len(raw))
	for name, value := range raw {
		ctyVal, err := yamlToCty(value)
		if err != nil {
			return nil, fmt.Errorf("var file %q, variable %q: %w", path, name, err)
		}
		vars[name] = ctyVal
	}
	return vars, nil
}

// yamlToCty converts a decoded YAML value into its cty equivalent.
func yamlToCty(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case float64:
		return cty.NumberFloatVal(t), nil
	case string:
		return cty.StringVal(t), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(t))
		for k, elem := range t {
			converted, err := yamlToCty(elem)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = converted
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		if len(t) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, 0, len(t))
		for _, elem := range t {
			converted, err := yamlToCty(elem)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, converted)
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value type %T", v)
	}
}
