package main

import (
	"bytes"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Request bodies are checked for shape only. Missing fields are fine: the
// reducer fills defaults.
var requestSchemas = map[string]string{
	"diary": `{
		"type": "object",
		"properties": {
			"id":        {"type": "string"},
			"diaryType": {"type": "string"},
			"title":     {"type": "string"},
			"content":   {"type": "string"},
			"createdAt": {"type": "string"}
		}
	}`,
	"meeting": `{
		"type": "object",
		"properties": {
			"id":        {"type": "string"},
			"title":     {"type": "string"},
			"startTime": {"type": "string"},
			"endTime":   {"type": "string"},
			"attendees": {
				"oneOf": [
					{"type": "string"},
					{"type": "array", "items": {"type": "string"}},
					{"type": "null"}
				]
			},
			"createdAt": {"type": "string"}
		}
	}`,
	"notification": `{
		"type": "object",
		"properties": {
			"id":        {"type": "string"},
			"kind":      {"enum": ["notification", "email", "video"]},
			"message":   {"type": "string"},
			"link":      {"type": "string"},
			"createdAt": {"type": "string"}
		}
	}`,
	"memory": `{
		"type": "object",
		"required": ["content"],
		"properties": {
			"id":        {"type": "string"},
			"content":   {"type": "string", "minLength": 1},
			"createdAt": {"type": "string"}
		}
	}`,
	"focus": `{
		"type": "object",
		"required": ["focus"],
		"properties": {
			"focus": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	"profile": `{
		"type": "object",
		"minProperties": 1,
		"properties": {
			"name":     {"type": "string"},
			"bio":      {"type": "string"},
			"timezone": {"type": "string"}
		}
	}`,
	"mode": `{
		"type": "object",
		"required": ["mode"],
		"properties": {
			"mode": {"type": "string", "minLength": 1}
		}
	}`,
	"chat": `{
		"type": "object",
		"required": ["message"],
		"properties": {
			"message": {"type": "string", "minLength": 1},
			"history": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["role", "text"],
					"properties": {
						"role": {"enum": ["user", "assistant"]},
						"text": {"type": "string"}
					}
				}
			}
		}
	}`,
	"plan": `{
		"type": "object",
		"required": ["actions"],
		"properties": {
			"actions": {
				"type": "array",
				"items": {"type": "object"}
			}
		}
	}`,
}

type schemaSet map[string]*jsonschema.Schema

func compileSchemas() (schemaSet, error) {
	c := jsonschema.NewCompiler()
	for name, src := range requestSchemas {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse request schema", goerr.V("name", name))
		}
		if err := c.AddResource(name+".json", doc); err != nil {
			return nil, goerr.Wrap(err, "failed to add request schema", goerr.V("name", name))
		}
	}

	set := make(schemaSet, len(requestSchemas))
	for name := range requestSchemas {
		sch, err := c.Compile(name + ".json")
		if err != nil {
			return nil, goerr.Wrap(err, "failed to compile request schema", goerr.V("name", name))
		}
		set[name] = sch
	}
	return set, nil
}

// validate checks raw against the named schema.
func (x schemaSet) validate(name string, raw []byte) error {
	sch, ok := x[name]
	if !ok {
		return goerr.New("unknown request schema", goerr.V("name", name))
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return goerr.Wrap(err, "request body is not valid JSON")
	}
	if err := sch.Validate(inst); err != nil {
		return goerr.Wrap(err, "request body does not match schema", goerr.V("schema", name))
	}
	return nil
}
