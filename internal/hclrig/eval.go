package hclrig

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// BuildEvalContext assembles the evaluation context rig expressions are
// resolved against. Two symbols are exposed: `var.<name>` for values
// supplied on the command line, and `workspace.root` for the resolved
// workspace root.
func BuildEvalContext(vars map[string]cty.Value, workspaceRoot string) *hcl.EvalContext {
	if vars == nil {
		vars = map[string]cty.Value{}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": cty.ObjectVal(vars),
			"workspace": cty.ObjectVal(map[string]cty.Value{
				"root": cty.StringVal(workspaceRoot),
			}),
		},
	}
}
