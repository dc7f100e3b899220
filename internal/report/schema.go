package report

// Schema is the JSON Schema (Draft 2020-12) for the gencheck run
// JSON output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/gencheck/run-report.schema.json",
  "title": "gencheck Run Report",
  "description": "Output schema for gencheck run --format=json",
  "type": "object",
  "required": ["version", "summary", "results"],
  "properties": {
    "version": {
      "type": "string",
      "description": "gencheck version"
    },
    "summary": { "$ref": "#/$defs/Summary" },
    "results": {
      "type": "array",
      "items": { "$ref": "#/$defs/RunResult" }
    }
  },
  "$defs": {
    "Summary": {
      "type": "object",
      "required": ["total", "passed", "failed"],
      "properties": {
        "total": { "type": "integer", "minimum": 0 },
        "passed": { "type": "integer", "minimum": 0 },
        "failed": { "type": "integer", "minimum": 0 }
      }
    },
    "RunResult": {
      "type": "object",
      "required": ["scenario", "passed", "diagnostics", "artifacts", "duration_ms"],
      "properties": {
        "scenario": { "type": "string" },
        "path": { "type": "string" },
        "description": { "type": "string" },
        "passed": { "type": "boolean" },
        "class": {
          "type": "string",
          "enum": ["assertion", "configuration", "technical"],
          "description": "Failure class, absent for passed scenarios"
        },
        "failure": {
          "type": "string",
          "description": "Failure message including the debug dump"
        },
        "diagnostics": {
          "type": "array",
          "items": { "$ref": "#/$defs/Diagnostic" }
        },
        "artifacts": {
          "type": "array",
          "items": { "$ref": "#/$defs/Artifact" }
        },
        "duration_ms": { "type": "number", "minimum": 0 }
      }
    },
    "Diagnostic": {
      "type": "object",
      "required": ["kind", "message"],
      "properties": {
        "kind": {
          "type": "string",
          "enum": ["error", "warning", "mandatory-warning", "note"]
        },
        "message": { "type": "string" },
        "source": { "type": "string" },
        "line": { "type": "integer", "minimum": 1 },
        "column": { "type": "integer", "minimum": 1 }
      }
    },
    "Artifact": {
      "type": "object",
      "required": ["location", "package", "name", "kind"],
      "properties": {
        "location": {
          "type": "string",
          "enum": ["SOURCE_OUTPUT", "RESOURCE_OUTPUT"]
        },
        "package": { "type": "string" },
        "name": { "type": "string" },
        "kind": {
          "type": "string",
          "enum": ["source", "resource"]
        }
      }
    }
  }
}`
