// Package schemas embeds the JSON Schemas for batch files and API requests.
package schemas

import _ "embed"

// Batch is the schema of a batch file.
//
//go:embed batch.schema.json
var Batch string

// ApplyRequest is the schema of a POST /apply body.
//
//go:embed apply_request.schema.json
var ApplyRequest string

// All returns every embedded schema keyed by file name.
func All() map[string]string {
	return map[string]string{
		"batch.schema.json":         Batch,
		"apply_request.schema.json": ApplyRequest,
	}
}
