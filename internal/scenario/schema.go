package scenario

// Schema is the JSON Schema (Draft 2020-12) every scenario document
// is checked against before it is decoded, whether written as YAML
// or TOML.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/gencheck/scenario.schema.json",
  "title": "gencheck scenario",
  "description": "Document embedded as scenario.yaml or scenario.toml in a scenario archive",
  "type": "object",
  "required": ["processors"],
  "additionalProperties": false,
  "properties": {
    "description": { "type": "string" },
    "processors": {
      "type": "array",
      "minItems": 1,
      "items": { "type": "string", "minLength": 1 }
    },
    "options": {
      "type": "array",
      "items": { "type": "string" }
    },
    "modules": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    },
    "success": {
      "type": "string",
      "enum": ["succeed", "fail", "unchecked"]
    },
    "diagnostics": {
      "type": "array",
      "items": { "$ref": "#/$defs/Diagnostic" }
    },
    "artifacts": {
      "type": "array",
      "items": { "$ref": "#/$defs/Artifact" }
    },
    "expected_error": { "$ref": "#/$defs/ExpectedError" }
  },
  "$defs": {
    "Diagnostic": {
      "type": "object",
      "required": ["kind"],
      "additionalProperties": false,
      "properties": {
        "kind": {
          "type": "string",
          "enum": ["error", "warning", "mandatory-warning", "note"]
        },
        "message": { "type": "string" },
        "contains": {
          "type": "array",
          "minItems": 1,
          "items": { "type": "string" }
        },
        "source": { "type": "string" },
        "line": { "type": "integer", "minimum": 0 },
        "column": { "type": "integer", "minimum": 0 },
        "locale": { "type": "string" }
      }
    },
    "Artifact": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "source": {
          "type": "string",
          "description": "Package-qualified generated Go file, e.g. gencheck.test/a/color_string.go"
        },
        "resource": {
          "type": "string",
          "description": "Package-qualified generated resource"
        },
        "exists": { "type": "boolean" },
        "match": { "type": "string", "enum": ["binary", "text"] },
        "contains": {
          "type": "array",
          "items": { "type": "string" }
        },
        "regex": { "type": "string" },
        "xml": { "type": "boolean" }
      }
    },
    "ExpectedError": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "panic": { "type": "boolean" },
        "contains": { "type": "string" }
      }
    }
  }
}`
