package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Makepad-fr/tada/internal/model"
)

// Tool pairs an advertised tool with its compiled input schema and the
// handler method that runs it.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	schema *jsonschema.Schema
	call   func(h *handler, args json.RawMessage) (string, error)
}

func newTool(name, desc, schema string, call func(*handler, json.RawMessage) (string, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: json.RawMessage(schema),
		schema:      jsonschema.MustCompileString("tada://tools/"+name+".json", schema),
		call:        call,
	}
}

var tools = []Tool{
	newTool("get_todos", "Get Todos", `{
  "type": "object",
  "properties": {},
  "required": []
}`, (*handler).getTodos),
	newTool("add_todo", "Add Todo", `{
  "type": "object",
  "properties": {"text": {"type": "string"}},
  "required": ["text"]
}`, (*handler).addTodo),
	newTool("remove_todo", "Remove Todo", `{
  "type": "object",
  "properties": {"id": {"type": "integer", "minimum": 0}},
  "required": ["id"]
}`, (*handler).removeTodo),
	newTool("update_todo", "Update Todo", `{
  "type": "object",
  "properties": {
    "id":   {"type": "integer", "minimum": 0},
    "text": {"type": "string"},
    "done": {"type": "boolean"}
  },
  "required": ["id", "text", "done"]
}`, (*handler).updateTodo),
}

// validate checks args against the tool's input schema. Missing
// arguments are treated as an empty object.
func (t Tool) validate(args json.RawMessage) error {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	v, err := decodeNumbers(args)
	if err != nil {
		return err
	}
	return t.schema.Validate(v)
}

type handler struct {
	store Store
	now   func() time.Time
}

// list reloads the store and decodes the current list.
func (h *handler) list() (model.List, error) {
	if err := h.store.Reload(); err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	raw, _ := h.store.Get(Key)
	return model.DecodeList(raw), nil
}

func (h *handler) persist(l model.List) error {
	if err := h.store.Set(Key, l); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return h.save()
}

func (h *handler) save() error {
	if err := h.store.Save(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func (h *handler) getTodos(json.RawMessage) (string, error) {
	l, err := h.list()
	if err != nil {
		return "", err
	}
	return encode(l)
}

func (h *handler) addTodo(args json.RawMessage) (string, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	l, err := h.list()
	if err != nil {
		return "", err
	}
	it := model.NewItem(in.Text, h.now())
	if err := h.persist(l.Append(it)); err != nil {
		return "", err
	}
	return encode(it)
}

func (h *handler) removeTodo(args json.RawMessage) (string, error) {
	var in struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	l, err := h.list()
	if err != nil {
		return "", err
	}
	return "", h.persist(l.Without(in.ID))
}

// updateTodo saves even when the id is unknown, leaving the list as is.
func (h *handler) updateTodo(args json.RawMessage) (string, error) {
	var in model.Item
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	l, err := h.list()
	if err != nil {
		return "", err
	}
	next, found := l.Replace(in)
	if found {
		if err := h.store.Set(Key, next); err != nil {
			return "", fmt.Errorf("set: %w", err)
		}
	}
	return "", h.save()
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
