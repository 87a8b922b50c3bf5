package toolserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

// paramsType maps each catalogue method to the Go type its params decode
// into, so a single schema generator and a single validator cover every
// operation.
var paramsType = map[string]any{
	MethodReadTree: struct{}{},
	MethodReadNode: ReadNodeParams{},
	MethodSpawn:    SpawnParams{},
	MethodFork:     ForkParams{},
	MethodAsk:      AskParams{},
	MethodComplete: CompleteParams{},
	MethodStop:     NodeRefParams{},
	MethodPause:    NodeRefParams{},
	MethodResume:   NodeRefParams{},
	MethodModify:   ModifyParams{},
}

var (
	validatorsOnce sync.Once
	validators     map[string]*jsonschemav5.Schema
	validatorsErr  error
)

// Validators lazily builds a JSON-schema validator per catalogue method,
// compiled from the Go param structs via reflection (invopop/jsonschema)
// and checked at call time with santhosh-tekuri/jsonschema/v5.
func Validators() (map[string]*jsonschemav5.Schema, error) {
	validatorsOnce.Do(func() {
		reflector := &jsonschema.Reflector{ExpandedStruct: true}
		out := make(map[string]*jsonschemav5.Schema, len(paramsType))
		for method, sample := range paramsType {
			if _, ok := sample.(struct{}); ok {
				continue // read_tree takes no params
			}
			doc := reflector.Reflect(sample)
			raw, err := json.Marshal(doc)
			if err != nil {
				validatorsErr = fmt.Errorf("toolserver: marshal schema for %s: %w", method, err)
				return
			}
			compiler := jsonschemav5.NewCompiler()
			url := "mem://" + method + ".json"
			if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
				validatorsErr = fmt.Errorf("toolserver: add schema resource for %s: %w", method, err)
				return
			}
			schema, err := compiler.Compile(url)
			if err != nil {
				validatorsErr = fmt.Errorf("toolserver: compile schema for %s: %w", method, err)
				return
			}
			out[method] = schema
		}
		validators = out
	})
	return validators, validatorsErr
}

// ValidateParams checks raw params against method's compiled schema. A
// nil/empty raw for a schema-less method (read_tree) is always valid.
func ValidateParams(method string, raw json.RawMessage) error {
	schemas, err := Validators()
	if err != nil {
		return err
	}
	schema, ok := schemas[method]
	if !ok {
		return nil
	}
	var v any
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return schema.Validate(v)
}
