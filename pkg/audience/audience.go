// Package audience evaluates cross-enclave export/import admission: given
// an export's audience declaration and the importing enclave, decides
// whether the import is admitted. The rule is small enough to state as a
// closed-form Go function, but it is expressed and evaluated as an
// embedded Rego policy so admission logic lives in the same
// policy-as-code form the rest of the reference corpus uses for
// authorization decisions. The Rego module is a Go string constant, so
// changing a rule means rebuilding the binary.
package audience

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

const admissionPolicy = `
package nclav.audience

import rego.v1

default admit = false

admit if {
	input.audience == "public"
}

admit if {
	input.audience == "any_enclave"
}

admit if {
	input.audience == "vpn"
}

admit if {
	input.audience == sprintf("enclave:%s", [input.importer])
}
`

// Checker evaluates cross-enclave audience admission via a prepared Rego
// query, compiled once at construction.
type Checker struct {
	query rego.PreparedEvalQuery
}

// NewChecker compiles the admission policy.
func NewChecker(ctx context.Context) (*Checker, error) {
	r := rego.New(
		rego.Query("data.nclav.audience.admit"),
		rego.Module("audience.rego", admissionPolicy),
	)
	q, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("audience: compiling admission policy: %w", err)
	}
	return &Checker{query: q}, nil
}

// Admits reports whether an export with the given audience string admits
// an import from the named importer enclave.
func (c *Checker) Admits(ctx context.Context, audienceValue string, importer string) (bool, error) {
	results, err := c.query.Eval(ctx, rego.EvalInput(map[string]any{
		"audience": audienceValue,
		"importer": importer,
	}))
	if err != nil {
		return false, fmt.Errorf("audience: evaluating admission policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	admitted, _ := results[0].Expressions[0].Value.(bool)
	return admitted, nil
}
