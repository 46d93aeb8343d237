// Package schema validates settable state payloads against the JSON Schema
// a device advertises. For mydlink plugs that schema is a single ON/OFF
// enum, but the validator handles whatever a controller exposes.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks state payloads against device state schemas. Compiled
// schemas are cached on the raw document text, so every plug of the same
// model shares one compilation.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator returns a Validator with an empty compilation cache.
func NewValidator() *Validator {
	return &Validator{
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks payload against doc. A missing or empty schema accepts
// everything: a device that advertises no schema cannot constrain its state.
func (v *Validator) Validate(doc json.RawMessage, payload map[string]any) error {
	switch string(doc) {
	case "", "{}", "null":
		return nil
	}

	s, err := v.schemaFor(doc)
	if err != nil {
		return fmt.Errorf("compile state schema: %w", err)
	}

	return s.Validate(payload)
}

// schemaFor returns the compiled schema for doc, compiling it on first use.
func (v *Validator) schemaFor(doc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(doc)

	v.mu.RLock()
	s, ok := v.compiled[key]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Another caller may have compiled it while we waited for the lock.
	if s, ok := v.compiled[key]; ok {
		return s, nil
	}

	var parsed any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, fmt.Errorf("parse schema document: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("state.json", parsed); err != nil {
		return nil, err
	}
	s, err := compiler.Compile("state.json")
	if err != nil {
		return nil, err
	}

	v.compiled[key] = s
	return s, nil
}
