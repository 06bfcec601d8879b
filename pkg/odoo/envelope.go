package odoo

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/qri-io/jsonschema"
)

// envelopeSchema describes the response shape Odoo's /jsonrpc endpoint
// produces. Only the parts the client relies on are constrained.
const envelopeSchema = `{
  "type": "object",
  "properties": {
    "jsonrpc": {"type": "string", "enum": ["2.0"]},
    "error": {
      "type": "object",
      "properties": {
        "code": {"type": "integer"},
        "message": {"type": "string"},
        "data": {
          "type": "object",
          "properties": {
            "name": {"type": "string"},
            "message": {"type": "string"}
          }
        }
      }
    }
  }
}`

var envelope = mustCompileSchema(envelopeSchema)

func mustCompileSchema(src string) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(src), rs); err != nil {
		panic("odoo: compile envelope schema: " + err.Error())
	}
	return rs
}

// validateEnvelope returns a ProtocolError when data is not JSON or does not
// match the envelope schema.
func validateEnvelope(ctx context.Context, data []byte) error {
	verrs, err := envelope.ValidateBytes(ctx, data)
	if err != nil {
		return &ProtocolError{Reason: "response is not JSON: " + err.Error()}
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for i, v := range verrs {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(v.PropertyPath)
			sb.WriteString(": ")
			sb.WriteString(v.Message)
		}
		return &ProtocolError{Reason: "response does not match envelope: " + sb.String()}
	}
	return nil
}
