package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrElementNotFound is returned when a named element is absent.
	ErrElementNotFound = errors.New("element not found")
	// ErrElementType is returned when an element holds a value of a different type.
	ErrElementType = errors.New("element has unexpected type")
)

// ElementError describes a failed element access.
type ElementError struct {
	Path string
	Err  error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

// Element is a node of a message payload. Numbers keep their literal form until a
// typed accessor parses them, so float64 values round-trip exactly.
type Element struct {
	name  string
	value any
}

// ParseElement decodes raw JSON into an element tree.
func ParseElement(name string, raw []byte) (Element, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Element{}, &ElementError{Path: name, Err: err}
	}
	return Element{name: name, value: v}, nil
}

// Name returns the dotted path of the element.
func (e Element) Name() string {
	return e.name
}

// GetElement returns the named child element.
func (e Element) GetElement(name string) (Element, error) {
	path := e.childPath(name)
	obj, ok := e.value.(map[string]any)
	if !ok {
		return Element{}, &ElementError{Path: path, Err: ErrElementType}
	}
	v, ok := obj[name]
	if !ok || v == nil {
		return Element{}, &ElementError{Path: path, Err: ErrElementNotFound}
	}
	return Element{name: path, value: v}, nil
}

// NumValues returns the number of values of an array element, 0 otherwise.
func (e Element) NumValues() int {
	arr, ok := e.value.([]any)
	if !ok {
		return 0
	}
	return len(arr)
}

// IsArray reports whether the element holds a sequence of values.
func (e Element) IsArray() bool {
	_, ok := e.value.([]any)
	return ok
}

// ValueAt returns the i-th value of an array element.
func (e Element) ValueAt(i int) (Element, error) {
	path := fmt.Sprintf("%s[%d]", e.name, i)
	arr, ok := e.value.([]any)
	if !ok {
		return Element{}, &ElementError{Path: path, Err: ErrElementType}
	}
	if i < 0 || i >= len(arr) {
		return Element{}, &ElementError{Path: path, Err: ErrElementNotFound}
	}
	return Element{name: path, value: arr[i]}, nil
}

// Float64 returns the element value as a float64.
func (e Element) Float64() (float64, error) {
	n, ok := e.value.(json.Number)
	if !ok {
		return 0, &ElementError{Path: e.name, Err: ErrElementType}
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, &ElementError{Path: e.name, Err: fmt.Errorf("%w: %v", ErrElementType, err)}
	}
	return f, nil
}

// Int64 returns the element value as an int64. Fractional numbers are rejected.
func (e Element) Int64() (int64, error) {
	n, ok := e.value.(json.Number)
	if !ok {
		return 0, &ElementError{Path: e.name, Err: ErrElementType}
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, &ElementError{Path: e.name, Err: fmt.Errorf("%w: %v", ErrElementType, err)}
	}
	return i, nil
}

// Text returns the element value as a string.
func (e Element) Text() (string, error) {
	s, ok := e.value.(string)
	if !ok {
		return "", &ElementError{Path: e.name, Err: ErrElementType}
	}
	return s, nil
}

// GetAsFloat64 returns the named child as a float64.
func (e Element) GetAsFloat64(name string) (float64, error) {
	child, err := e.GetElement(name)
	if err != nil {
		return 0, err
	}
	return child.Float64()
}

// GetAsInt64 returns the named child as an int64.
func (e Element) GetAsInt64(name string) (int64, error) {
	child, err := e.GetElement(name)
	if err != nil {
		return 0, err
	}
	return child.Int64()
}

// GetAsInt returns the named child as an int.
func (e Element) GetAsInt(name string) (int, error) {
	v, err := e.GetAsInt64(name)
	if err != nil {
		return 0, err
	}
	if int64(int(v)) != v {
		return 0, &ElementError{Path: e.childPath(name), Err: ErrElementType}
	}
	return int(v), nil
}

// GetAsString returns the named child as a string.
func (e Element) GetAsString(name string) (string, error) {
	child, err := e.GetElement(name)
	if err != nil {
		return "", err
	}
	return child.Text()
}

func (e Element) childPath(name string) string {
	if e.name == "" {
		return name
	}
	return e.name + "." + name
}
