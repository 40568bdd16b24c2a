package action

import (
	"encoding/json"
	"fmt"
	"strings"

	xerrors "AgentKit-Chain/internal/errors"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const emptyObjectSchema = `{"type":"object"}`

// Args carries the JSON-shaped arguments of an action call.
type Args = map[string]any

// Schema is a compiled argument schema together with its source document.
type Schema struct {
	name     string
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// CompileSchema compiles a Draft 2020-12 document. An empty document accepts
// any object. The root must declare "type": "object".
func CompileSchema(name, raw string) (*Schema, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = emptyObjectSchema
	}

	var root map[string]any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, definitionError(name, "参数 schema 不是合法的 JSON 对象", err)
	}
	if typ, _ := root["type"].(string); typ != "object" {
		return nil, definitionError(name, "参数 schema 的根类型必须是 object", nil)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://agentkit.schemas.local/actions/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
		return nil, definitionError(name, "加载参数 schema 失败", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, definitionError(name, "编译参数 schema 失败", err)
	}

	return &Schema{name: name, raw: json.RawMessage(raw), compiled: compiled}, nil
}

// Raw returns the schema document as published to clients.
func (s *Schema) Raw() json.RawMessage {
	if s == nil {
		return json.RawMessage(emptyObjectSchema)
	}
	return s.raw
}

// Validate checks args against the schema. Args are normalised through a JSON
// round trip first so Go integers validate like JSON numbers; nil means {}.
func (s *Schema) Validate(args Args) error {
	if s == nil {
		return nil
	}
	doc, err := normalize(args)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeActionValidationFailed, err,
			fmt.Sprintf("%s 的参数无法序列化", s.name),
			xerrors.WithMetadata("action", s.name))
	}
	if err := s.compiled.Validate(doc); err != nil {
		return xerrors.Wrap(xerrors.CodeActionValidationFailed, err,
			fmt.Sprintf("%s 的参数未通过校验", s.name),
			xerrors.WithMetadata("action", s.name))
	}
	return nil
}

func normalize(args Args) (any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode converts validated args into a typed value.
func Decode[T any](args Args) (T, error) {
	var out T
	if args == nil {
		args = Args{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode args: %w", err)
	}
	return out, nil
}

func definitionError(name, message string, cause error) error {
	opt := xerrors.WithMetadata("action", name)
	if cause == nil {
		return xerrors.New(xerrors.CodeActionDefinitionInvalid, fmt.Sprintf("%s: %s", name, message), opt)
	}
	return xerrors.Wrap(xerrors.CodeActionDefinitionInvalid, cause, fmt.Sprintf("%s: %s", name, message), opt)
}
