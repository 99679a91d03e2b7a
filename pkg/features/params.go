package features

import (
	"fmt"
	"strings"

	"github.com/archonhq/archon/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// parameterSchema builds a JSON schema document from the feature's declared
// parameters.
func parameterSchema(feature models.Feature) map[string]any {
	properties := make(map[string]any, len(feature.Parameters))
	required := make([]string, 0)

	for _, param := range feature.Parameters {
		property := map[string]any{"type": string(param.Type)}
		if param.Description != "" {
			property["description"] = param.Description
		}

		properties[param.Name] = property

		if param.Required && param.DefaultValue == nil {
			required = append(required, param.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// validateParams applies declared defaults and validates the merged
// parameters against the feature's schema. Returns the merged map.
func validateParams(feature models.Feature, params map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(params))
	for key, value := range params {
		merged[key] = value
	}

	for _, param := range feature.Parameters {
		if _, ok := merged[param.Name]; !ok && param.DefaultValue != nil {
			merged[param.Name] = param.DefaultValue
		}
	}

	if len(feature.Parameters) == 0 {
		return merged, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(parameterSchema(feature)),
		gojsonschema.NewGoLoader(merged),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidParameters, strings.Join(details, "; "))
	}

	return merged, nil
}
