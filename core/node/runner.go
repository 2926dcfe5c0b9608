package node

import (
	"context"
	"fmt"
)

// Sentinel errors for the node runner. Both mark the node FAILED, which
// fails its layer and the flow.
var (
	// ErrMissingRequiredInput indicates a required input had neither an
	// assigned value nor a declared default.
	ErrMissingRequiredInput = fmt.Errorf("missing required input")

	// ErrOutputShapeMismatch indicates Process returned a value that does
	// not match the spec's declared outputs.
	ErrOutputShapeMismatch = fmt.Errorf("output shape mismatch")
)

// ExtractInputs resolves the effective input values for a node: the
// assigned value when present, else the declared default. A required input
// with neither fails with ErrMissingRequiredInput.
func ExtractInputs(spec *Spec, data *Data) (map[string]any, error) {
	inputs := make(map[string]any, len(spec.Inputs))

	for _, declared := range spec.Inputs {
		if value, assigned := data.Inputs[declared.Name]; assigned {
			inputs[declared.Name] = value
			continue
		}
		if declared.Default != nil {
			inputs[declared.Name] = declared.Default
			continue
		}
		if declared.Required {
			return nil, fmt.Errorf("%w: %q on node %q", ErrMissingRequiredInput, declared.Name, spec.Name)
		}
	}

	return inputs, nil
}

// ExtractParams resolves the effective parameter values for a node: the
// assigned value when present, else the declared default.
func ExtractParams(spec *Spec, data *Data) map[string]any {
	params := make(map[string]any, len(spec.Params))

	for _, declared := range spec.Params {
		if value, assigned := data.Params[declared.Name]; assigned {
			params[declared.Name] = value
			continue
		}
		if declared.Default != nil {
			params[declared.Name] = declared.Default
		}
	}

	return params
}

// PackageOutputs shapes a raw Process result into the declared output map.
//
// A single-output spec accepts any non-map result and wraps it as
// {outputName: result}; a map result is accepted as-is when it carries
// exactly the declared output name. A multi-output spec requires a map
// whose keys are exactly the declared output names: no missing keys, no
// extras. Violations fail with ErrOutputShapeMismatch.
func PackageOutputs(spec *Spec, result any) (map[string]any, error) {
	if len(spec.Outputs) == 0 {
		return map[string]any{}, nil
	}

	if len(spec.Outputs) == 1 {
		outputName := spec.Outputs[0].Name

		if mapped, isMap := result.(map[string]any); isMap {
			if value, exists := mapped[outputName]; exists && len(mapped) == 1 {
				return map[string]any{outputName: value}, nil
			}
			// A map that is not shaped as the declared output is treated as
			// the output value itself.
			return map[string]any{outputName: mapped}, nil
		}

		return map[string]any{outputName: result}, nil
	}

	mapped, isMap := result.(map[string]any)
	if !isMap {
		return nil, fmt.Errorf("%w: node %q declares %d outputs but returned %T",
			ErrOutputShapeMismatch, spec.Name, len(spec.Outputs), result)
	}

	outputs := make(map[string]any, len(spec.Outputs))
	for _, declared := range spec.Outputs {
		value, exists := mapped[declared.Name]
		if !exists {
			return nil, fmt.Errorf("%w: node %q result is missing output %q",
				ErrOutputShapeMismatch, spec.Name, declared.Name)
		}
		outputs[declared.Name] = value
	}

	if len(mapped) != len(spec.Outputs) {
		for key := range mapped {
			if _, declared := spec.Output(key); !declared {
				return nil, fmt.Errorf("%w: node %q result carries undeclared output %q",
					ErrOutputShapeMismatch, spec.Name, key)
			}
		}
	}

	return outputs, nil
}

// Run executes a node end to end: input and parameter extraction, Process,
// and output packaging. The packaged outputs are returned without being
// written back to data; the executor owns that write.
func Run(ctx context.Context, instance Node, data *Data) (map[string]any, error) {
	spec := instance.Spec()

	inputs, err := ExtractInputs(spec, data)
	if err != nil {
		return nil, err
	}
	params := ExtractParams(spec, data)

	result, err := instance.Process(ctx, inputs, params)
	if err != nil {
		return nil, err
	}

	return PackageOutputs(spec, result)
}
