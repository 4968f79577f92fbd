package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/blocks"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

func boolPtr(v bool) *bool { return &v }

// getObject reads an object argument. Clients that cannot send nested
// objects may pass it as a JSON string instead. A missing key yields nil.
func getObject(args map[string]any, key string) (map[string]any, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var m map[string]any
		if err := parseJSON(v, &m); err != nil {
			return nil, fmt.Errorf("%s: invalid JSON object: %w", key, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%s must be an object", key)
	}
}

// getIndex reads the optional sibling index; a missing or negative value
// appends.
func getIndex(args map[string]any) int {
	if v, ok := args["index"].(float64); ok && v >= 0 {
		return int(v)
	}
	return blocks.Append
}

func requireString(req mcp.CallToolRequest, key string) (string, error) {
	v := req.GetString(key, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}
