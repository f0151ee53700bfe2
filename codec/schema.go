package codec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBase = "https://schemas.scanbridge.dev/"

const pointSchema = `{
	"type": "object",
	"required": ["x", "y"],
	"properties": {"x": {"type": "number"}, "y": {"type": "number"}}
}`

var quadrilateralSchema = fmt.Sprintf(`{
	"type": "object",
	"required": ["topLeft", "topRight", "bottomRight", "bottomLeft"],
	"properties": {
		"topLeft": %[1]s,
		"topRight": %[1]s,
		"bottomRight": %[1]s,
		"bottomLeft": %[1]s
	}
}`, pointSchema)

var barcodeSchema = fmt.Sprintf(`{
	"type": "object",
	"required": ["symbology", "location"],
	"properties": {
		"symbology": {"type": "string", "minLength": 1},
		"data": {"type": ["string", "null"]},
		"rawData": {"type": "string"},
		"addOnData": {"type": ["string", "null"]},
		"compositeData": {"type": ["string", "null"]},
		"compositeRawData": {"type": "string"},
		"isGS1DataCarrier": {"type": "boolean"},
		"compositeFlag": {"type": "string"},
		"isColorInverted": {"type": "boolean"},
		"symbolCount": {"type": "integer"},
		"frameId": {"type": "integer"},
		"encodingRanges": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["ianaName", "startIndex", "endIndex"],
				"properties": {
					"ianaName": {"type": "string"},
					"startIndex": {"type": "integer"},
					"endIndex": {"type": "integer"}
				}
			}
		},
		"location": %s
	}
}`, quadrilateralSchema)

var localizedOnlyBarcodeSchema = fmt.Sprintf(`{
	"type": "object",
	"required": ["location"],
	"properties": {"location": %s, "frameId": {"type": "integer"}}
}`, quadrilateralSchema)

var trackedBarcodeSchema = fmt.Sprintf(`{
	"type": "object",
	"required": ["identifier", "barcode", "location"],
	"properties": {
		"identifier": {"type": "integer"},
		"barcode": %s,
		"location": %s,
		"predictedLocation": %[2]s,
		"deltaTime": {"type": "number"},
		"shouldAnimateFromPreviousToNextState": {"type": "boolean"}
	}
}`, barcodeSchema, quadrilateralSchema)

const brushSchema = `{
	"type": "object",
	"required": ["fillColor", "strokeColor", "strokeWidth"],
	"properties": {
		"fillColor": {"type": "string"},
		"strokeColor": {"type": "string"},
		"strokeWidth": {"type": "number", "minimum": 0}
	}
}`

const numberWithUnitSchema = `{
	"type": "object",
	"required": ["value", "unit"],
	"properties": {
		"value": {"type": "number"},
		"unit": {"enum": ["pixel", "dip", "fraction"]}
	}
}`

var pointWithUnitSchema = fmt.Sprintf(`{
	"type": "object",
	"required": ["x", "y"],
	"properties": {"x": %[1]s, "y": %[1]s}
}`, numberWithUnitSchema)

const viewSchema = `{
	"type": "object",
	"required": ["data"],
	"properties": {
		"data": {"type": "string", "minLength": 1},
		"options": {
			"type": "object",
			"properties": {
				"width": {"type": "number"},
				"height": {"type": "number"},
				"scale": {"type": "number"}
			}
		}
	}
}`

const finishSchema = `{
	"type": "object",
	"required": ["finishCallbackID"],
	"properties": {
		"finishCallbackID": {"type": "string", "minLength": 1},
		"trackedBarcodeID": {"type": "integer"},
		"sessionFrameSequenceID": {"type": ["string", "integer"]}
	}
}`

var schemaSources = map[string]string{
	"point.json":                  pointSchema,
	"quadrilateral.json":          quadrilateralSchema,
	"barcode.json":                barcodeSchema,
	"localized-only-barcode.json": localizedOnlyBarcodeSchema,
	"tracked-barcode.json":        trackedBarcodeSchema,
	"brush.json":                  brushSchema,
	"point-with-unit.json":        pointWithUnitSchema,
	"view.json":                   viewSchema,
	"finish.json":                 finishSchema,
}

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	for name, source := range schemaSources {
		if err := compiler.AddResource(schemaBase+name, strings.NewReader(source)); err != nil {
			return nil, errors.Wrapf(err, "add schema resource %s", name)
		}
	}
	compiled := make(map[string]*jsonschema.Schema, len(schemaSources))
	for name := range schemaSources {
		schema, err := compiler.Compile(schemaBase + name)
		if err != nil {
			return nil, errors.Wrapf(err, "compile schema %s", name)
		}
		compiled[name] = schema
	}
	return compiled, nil
}

// validate checks a generic JSON value (as produced by encoding/json) against a named schema
func validate(name string, value any) error {
	schemasOnce.Do(func() {
		schemas, schemasErr = compileSchemas()
	})
	if schemasErr != nil {
		return schemasErr
	}
	schema, ok := schemas[name]
	if !ok {
		return errors.Errorf("unknown schema %s", name)
	}
	if err := schema.Validate(value); err != nil {
		return errors.Wrapf(ErrMalformedPayload, "%s: %v", strings.TrimSuffix(name, ".json"), err)
	}
	return nil
}
