//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
	"reflect"
	"sync"

	"trpc.group/trpc-go/trpc-agent-foundry/model"
)

// Keys of the message state.
const (
	StateKeyMessages     = "messages"
	StateKeyUserInput    = "user_input"
	StateKeyLastResponse = "last_response"
	StateKeyMetadata     = "metadata"
)

// StateReducer merges an update into the existing value of a field.
type StateReducer func(existing, update any) any

// StateField describes one field of the state.
type StateField struct {
	Type    reflect.Type
	Reducer StateReducer
	Default func() any
}

// StateSchema maps field names to their definition.
type StateSchema struct {
	mu     sync.RWMutex
	Fields map[string]StateField
}

// NewStateSchema creates an empty schema.
func NewStateSchema() *StateSchema {
	return &StateSchema{Fields: make(map[string]StateField)}
}

// AddField adds or replaces a field.
func (s *StateSchema) AddField(name string, field StateField) *StateSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field.Reducer == nil {
		field.Reducer = DefaultReducer
	}
	s.Fields[name] = field
	return s
}

// Field returns the definition of name.
func (s *StateSchema) Field(name string) (StateField, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.Fields[name]
	return f, ok
}

// CreateInitialState returns a state holding the defaults of every field.
func (s *StateSchema) CreateInitialState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(State, len(s.Fields))
	for name, f := range s.Fields {
		if f.Default != nil {
			state[name] = f.Default()
		}
	}
	return state
}

// ApplyUpdate returns current with update merged in. Fields unknown to
// the schema are overwritten. A value whose type does not match the
// field type, or its element type for slices, is an error.
func (s *StateSchema) ApplyUpdate(current, update State) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := current.Clone()
	for k, v := range update {
		f, ok := s.Fields[k]
		if !ok {
			out[k] = v
			continue
		}
		if f.Type != nil && v != nil && !assignable(reflect.TypeOf(v), f.Type) {
			return nil, fmt.Errorf("field %s: got %T, want %s", k, v, f.Type)
		}
		out[k] = f.Reducer(out[k], v)
	}
	return out, nil
}

func assignable(v, field reflect.Type) bool {
	if v.AssignableTo(field) {
		return true
	}
	return field.Kind() == reflect.Slice && v.AssignableTo(field.Elem())
}

// DefaultReducer replaces the existing value.
func DefaultReducer(_, update any) any {
	return update
}

// MessageReducer appends messages. A single model.Message is accepted as
// well as a slice.
func MessageReducer(existing, update any) any {
	var msgs []model.Message
	if e, ok := existing.([]model.Message); ok {
		msgs = make([]model.Message, 0, len(e)+1)
		msgs = append(msgs, e...)
	}
	switch u := update.(type) {
	case []model.Message:
		return append(msgs, u...)
	case model.Message:
		return append(msgs, u)
	}
	return msgs
}

// MergeReducer merges map updates key by key.
func MergeReducer(existing, update any) any {
	out := make(map[string]any)
	if e, ok := existing.(map[string]any); ok {
		for k, v := range e {
			out[k] = v
		}
	}
	if u, ok := update.(map[string]any); ok {
		for k, v := range u {
			out[k] = v
		}
	}
	return out
}

// MessagesStateSchema is the schema of conversational graphs: messages
// are appended, the other fields are replaced.
func MessagesStateSchema() *StateSchema {
	schema := NewStateSchema()
	schema.AddField(StateKeyMessages, StateField{
		Type:    reflect.TypeOf([]model.Message{}),
		Reducer: MessageReducer,
		Default: func() any { return []model.Message{} },
	})
	schema.AddField(StateKeyUserInput, StateField{
		Type:    reflect.TypeOf(""),
		Reducer: DefaultReducer,
	})
	schema.AddField(StateKeyLastResponse, StateField{
		Type:    reflect.TypeOf(""),
		Reducer: DefaultReducer,
	})
	schema.AddField(StateKeyMetadata, StateField{
		Type:    reflect.TypeOf(map[string]any{}),
		Reducer: MergeReducer,
		Default: func() any { return make(map[string]any) },
	})
	return schema
}

// Messages returns the messages held by state.
func Messages(state State) []model.Message {
	msgs, _ := state[StateKeyMessages].([]model.Message)
	return msgs
}
