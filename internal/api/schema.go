package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/swannekim/FURIOUS/internal/track"
)

// requestSchema describes the body accepted by every POST computation route.
const requestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["shipType", "shipId", "datetime"],
  "properties": {
    "shipType": {"type": "string", "minLength": 1},
    "shipId": {
      "oneOf": [
        {"type": "string", "minLength": 1},
        {"type": "integer", "minimum": 0}
      ]
    },
    "datetime": {"type": "string", "format": "track_timestamp"},
    "timeLength": {"type": "integer", "minimum": 1, "maximum": 1440},
    "selectedTsIds": {
      "type": "array",
      "maxItems": 64,
      "items": {
        "oneOf": [
          {"type": "string", "minLength": 1},
          {"type": "integer", "minimum": 0}
        ]
      }
    }
  }
}`

// timestampFormatChecker accepts the timestamp layouts of track files.
type timestampFormatChecker struct{}

func (timestampFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return true
	}
	_, err := track.ParseTimestamp(s)
	return err == nil
}

func init() {
	gojsonschema.FormatCheckers.Add("track_timestamp", timestampFormatChecker{})
}

// validator checks request bodies against requestSchema.
type validator struct {
	schema *gojsonschema.Schema
}

func newValidator() (*validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling request schema: %w", err)
	}
	return &validator{schema: s}, nil
}

// validate returns a single error listing every schema violation in body.
func (v *validator) validate(body []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}
