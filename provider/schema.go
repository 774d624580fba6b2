package provider

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into the strict form structured outputs accept.
// Every object closes additionalProperties and requires all of its
// properties. Numeric bounds come from `jsonschema:"minimum=..,maximum=.."`
// tags on T.
func GenerateSchema[T any]() map[string]any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic(fmt.Sprintf("GenerateSchema: marshal: %v", err))
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		panic(fmt.Sprintf("GenerateSchema: unmarshal: %v", err))
	}
	strictify(schema)
	return schema
}

// strictify walks every nested schema node, closing objects and marking all
// of their properties required in sorted order.
func strictify(node any) {
	switch n := node.(type) {
	case map[string]any:
		if n["type"] == "object" {
			n["additionalProperties"] = false
			if props, ok := n["properties"].(map[string]any); ok && len(props) > 0 {
				names := make([]string, 0, len(props))
				for name := range props {
					names = append(names, name)
				}
				sort.Strings(names)
				n["required"] = names
			}
		}
		for key, child := range n {
			if key == "required" || key == "enum" {
				continue
			}
			strictify(child)
		}
	case []any:
		for _, child := range n {
			strictify(child)
		}
	}
}
