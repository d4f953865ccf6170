package extraction

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const resultSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question_text"],
        "properties": {
          "question_text": {"type": "string"},
          "question_type": {"type": ["string", "null"]},
          "subject_topic": {"type": ["string", "null"]},
          "difficulty_level": {"type": ["string", "null"]},
          "context": {"type": ["string", "null"]},
          "image_id": {"type": ["string", "null"]}
        }
      }
    },
    "summary": {"type": ["string", "null"]},
    "total_questions_found": {"type": ["integer", "null"], "minimum": 0}
  }
}`

var resultSchema = mustCompileSchema(resultSchemaJSON)

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader([]byte(raw))); err != nil {
		panic(fmt.Sprintf("load result schema: %v", err))
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		panic(fmt.Sprintf("compile result schema: %v", err))
	}
	return schema
}
