// Package model loads the type model that describes a target
// library's exported functions and user-defined aggregate types. The
// model itself is produced by a header parser that is outside this
// engine's scope; this package only consumes its XML output.
package model

import (
	"encoding/xml"
	"fmt"
	"os"
)

// Model is the parsed type model for one target library.
type Model struct {
	Functions []Function
	UserTypes map[int]UserType
}

// Function is one exported, model-known function and its positional
// parameter type codes.
type Function struct {
	Name   string
	Params []string
}

// UserType is a struct or union keyed by its decimal model id.
type UserType struct {
	ID     int
	Kind   string // "struct" | "union"
	Fields []string
}

// FunctionByName returns the model entry for name, if any.
func (m *Model) FunctionByName(name string) (Function, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// xmlModel mirrors the on-disk shape: a single root element holding
// <function> and <usertype> children, each carrying positional
// <param type="CODE"/> children.
type xmlModel struct {
	Functions []xmlFunction `xml:"function"`
	UserTypes []xmlUserType `xml:"usertype"`
}

type xmlFunction struct {
	Name   string     `xml:"name,attr"`
	Params []xmlParam `xml:"param"`
}

type xmlUserType struct {
	ID     int        `xml:"id,attr"`
	Kind   string     `xml:"type,attr"`
	Fields []xmlParam `xml:"param"`
}

type xmlParam struct {
	Type string `xml:"type,attr"`
}

// Load parses the type model at path.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: open %s: %w", path, err)
	}
	defer f.Close()

	var raw xmlModel
	if err := xml.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("model: parse %s: %w", path, err)
	}

	m := &Model{UserTypes: make(map[int]UserType, len(raw.UserTypes))}
	for _, rf := range raw.Functions {
		fn := Function{Name: rf.Name}
		for _, p := range rf.Params {
			fn.Params = append(fn.Params, p.Type)
		}
		m.Functions = append(m.Functions, fn)
	}
	for _, ru := range raw.UserTypes {
		ut := UserType{ID: ru.ID, Kind: ru.Kind}
		for _, p := range ru.Fields {
			ut.Fields = append(ut.Fields, p.Type)
		}
		if _, dup := m.UserTypes[ut.ID]; dup {
			return nil, fmt.Errorf("model: duplicate usertype id %d", ut.ID)
		}
		m.UserTypes[ut.ID] = ut
	}
	return m, nil
}
