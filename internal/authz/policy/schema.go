// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package policy

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// policyDocument is the wire shape of a tenant policy upload: the full
// replacement list plus the version the author read.
type policyDocument struct {
	Policies        []Policy `json:"policies"`
	ExpectedVersion int64    `json:"expectedVersion"`
}

var (
	schemaOnce  sync.Once
	schemaCache *jschema.Schema
	schemaErr   error
)

// SchemaID is the $id advertised in generated schema documents.
const SchemaID = "https://orgcentral.dev/schemas/abac-policy.schema.json"

// GenerateSchema generates the JSON Schema for policy upload documents.
// Tooling and editors consume this for validation and completion.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&policyDocument{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "OrgCentral ABAC Policy Set"
	schema.Description = "Schema for tenant ABAC policy replacement documents"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// ValidateDocument checks a raw policy upload against the generated JSON
// Schema and decodes it. Structural validation only; selector and condition
// semantics are checked separately via ValidatePolicies.
func ValidateDocument(data []byte) ([]Policy, int64, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("policy document is empty")
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, 0, fmt.Errorf("invalid JSON: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to compile schema: %w", err)
	}
	if err := sch.Validate(generic); err != nil {
		return nil, 0, fmt.Errorf("schema validation failed: %w", err)
	}

	var doc policyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("invalid policy document: %w", err)
	}
	return doc.Policies, doc.ExpectedVersion, nil
}

func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaBytes, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}

		var schemaData any
		if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
			schemaErr = fmt.Errorf("failed to parse schema JSON: %w", err)
			return
		}

		c := jschema.NewCompiler()
		if err := c.AddResource("schema.json", schemaData); err != nil {
			schemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		schemaCache, schemaErr = c.Compile("schema.json")
	})
	return schemaCache, schemaErr
}
