package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/labrig/internal/ctxlog"
	"github.com/vk/labrig/internal/plan"
	"github.com/vk/labrig/internal/registry"
)

// invokeHandler decodes the step's arguments into the module's input
// struct and calls the registered handler function.
func (e *Executor) invokeHandler(ctx context.Context, step *plan.Step, handler *registry.RegisteredStep) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("step", step.ID())

	inputStruct := handler.NewInput()
	if inputStruct != nil && step.Arguments != nil {
		if diags := gohcl.DecodeBody(step.Arguments, e.evalCtx, inputStruct); diags.HasErrors() {
			return cty.NilVal, fmt.Errorf("failed to decode arguments for %s: %w", step.ID(), diags)
		}
	}
	logger.Debug("Step input decoded.", "data", inputStruct)

	handlerFunc := reflect.ValueOf(handler.Fn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx)}
	if inputStruct == nil {
		callArgs = append(callArgs, reflect.Zero(handlerFunc.Type().In(1)))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(inputStruct))
	}

	results := handlerFunc.Call(callArgs)
	output, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return cty.NilVal, errResult.(error)
	}

	if ctyOutput, ok := output.(cty.Value); ok {
		return ctyOutput, nil
	}
	return cty.NilVal, nil
}

// bytesFromOutput pulls the "bytes" attribute out of a handler's output
// object, for the run report. Handlers that do not transfer payloads
// simply omit it.
func bytesFromOutput(v cty.Value) int64 {
	if v.IsNull() || !v.IsKnown() || !v.Type().IsObjectType() {
		return 0
	}
	if !v.Type().HasAttribute("bytes") {
		return 0
	}
	attr := v.GetAttr("bytes")
	if attr.IsNull() || attr.Type() != cty.Number {
		return 0
	}
	n, _ := attr.AsBigFloat().Int64()
	return n
}
