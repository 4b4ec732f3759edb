package tool

import "fmt"

// stringArg extracts a string input, returning fallback when absent.
func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// boolArg extracts a boolean input, returning fallback when absent.
func boolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

// stringSliceArg extracts a string-slice input. YAML/JSON decoding
// produces []any, so both forms are accepted.
func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// requiredString extracts a required string input or errors with the
// tool name for context.
func requiredString(toolName string, args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s: %q input is required", toolName, key)
	}
	return v, nil
}
