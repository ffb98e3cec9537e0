package artifact

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed traces.schema.json
var tracesSchema []byte

const tracesSchemaURL = "traces.schema.json"

var compileTraces = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(tracesSchema))
	if err != nil {
		return nil, fmt.Errorf("parse traces schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(tracesSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add traces schema: %w", err)
	}
	return c.Compile(tracesSchemaURL)
})

// ValidateTraces checks a traces file against the embedded schema.
func ValidateTraces(data []byte) error {
	sch, err := compileTraces()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid traces: %w", err)
	}
	return nil
}

// TracesSchema returns the embedded JSON schema of traces files.
func TracesSchema() []byte {
	return tracesSchema
}
