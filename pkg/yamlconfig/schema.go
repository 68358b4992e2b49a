package yamlconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/dragon-panic/nclav/pkg/domain"
	"github.com/dragon-panic/nclav/pkg/nclaverr"
)

// enclaveSchema constrains the shape of a decoded EnclaveDecl before it
// reaches the graph validator: required fields, enums, and string
// charsets that are cheap to express declaratively rather than as Go
// conditionals scattered through the loader.
const enclaveSchema = `
id:       =~"^[a-z0-9][a-z0-9-]{0,29}$"
name?:     string
cloud?:    "local" | "gcp" | "aws" | "azure" | ""
region?:   string
identity?: string
network?: {
	vpc_cidr: string
	subnets?: [...string]
}
dns?: {
	zone: string
}
exports?: [...{
	name:             string
	target_partition: string
	type:             "http" | "tcp" | "queue"
	to:               string
	auth:             "none" | "token" | "oauth" | "mtls" | "native"
}]
imports?: [...{
	from:        string
	export_name: string
	alias:       string
}]
`

const partitionSchema = `
id:         =~"^[a-z0-9][a-z0-9-]{0,62}$"
name?:      string
produces?:  "http" | "tcp" | "queue" | ""
backend:    "terraform" | "opentofu"
terraform?: {
	source?: string
	tool?:   string
}
inputs?:          {[string]: string}
declared_outputs?: [...string]
imports?: [...{
	from:        string
	export_name: string
	alias:       string
}]
`

// Schema wraps a compiled CUE context so repeated validation calls reuse
// one context rather than recompiling the schema text every time.
type Schema struct {
	ctx             *cue.Context
	enclaveSchema   cue.Value
	partitionSchema cue.Value
}

// NewSchema compiles the enclave and partition CUE schemas once.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()

	e := ctx.CompileString(enclaveSchema)
	if err := e.Err(); err != nil {
		return nil, fmt.Errorf("compiling enclave schema: %w", err)
	}
	p := ctx.CompileString(partitionSchema)
	if err := p.Err(); err != nil {
		return nil, fmt.Errorf("compiling partition schema: %w", err)
	}

	return &Schema{ctx: ctx, enclaveSchema: e, partitionSchema: p}, nil
}

// ValidateEnclave unifies decl against the enclave schema and returns a
// ValidationError naming every violated field when it fails.
func (s *Schema) ValidateEnclave(decl domain.EnclaveDecl) error {
	return s.validate(s.enclaveSchema, decl, string(decl.Id))
}

// ValidatePartition unifies decl against the partition schema.
func (s *Schema) ValidatePartition(decl domain.PartitionDecl) error {
	return s.validate(s.partitionSchema, decl, string(decl.Id))
}

func (s *Schema) validate(schema cue.Value, v any, resourceId string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return nclaverr.NewValidationError("encoding %s for schema check", resourceId).WithErr(err)
	}

	val := s.ctx.CompileBytes(b)
	if err := val.Err(); err != nil {
		return nclaverr.NewValidationError("decoding %s for schema check", resourceId).WithErr(err)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nclaverr.NewValidationError("schema violation for %s: %s", resourceId, formatCueErr(err))
	}

	return nil
}

func formatCueErr(err error) string {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msgs = append(msgs, cueerrors.Details(e, nil))
	}
	return strings.Join(msgs, "; ")
}
