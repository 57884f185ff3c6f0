// Package schemas embeds the JSON Schemas used to validate the pipeline
// configuration file and the evaluator's matrix output.
package schemas

import _ "embed"

//go:embed pipeline.schema.json
var PipelineSchemaJSON string

//go:embed matrix.schema.json
var MatrixSchemaJSON string
