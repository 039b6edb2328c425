// Package parse turns raw match and timeline payloads into the
// normalized row tables the store persists, and detects schema drift
// in payloads without rejecting them.
package parse

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind discriminates a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	NumberList
)

// Value is the open sum carried by challenge maps and rare-event
// payloads: null, bool, number, string or a list of numbers.
type Value struct {
	Kind    Kind
	Bool    bool
	Number  float64
	Str     string
	Numbers []float64
}

// NumberValue wraps a float64.
func NumberValue(f float64) Value { return Value{Kind: Number, Number: f} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: String, Str: s} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{Kind: Bool, Bool: b} }

// NumbersValue wraps a list of numbers.
func NumbersValue(ns ...float64) Value { return Value{Kind: NumberList, Numbers: ns} }

// UnmarshalJSON decodes any of the five supported shapes. Objects and
// heterogeneous lists are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	it := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowIterator(data)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnIterator(it)

	switch it.WhatIsNext() {
	case jsoniter.NilValue:
		it.ReadNil()
		*v = Value{Kind: Null}
	case jsoniter.BoolValue:
		*v = Value{Kind: Bool, Bool: it.ReadBool()}
	case jsoniter.NumberValue:
		*v = Value{Kind: Number, Number: it.ReadFloat64()}
	case jsoniter.StringValue:
		*v = Value{Kind: String, Str: it.ReadString()}
	case jsoniter.ArrayValue:
		nums := []float64{}
		for it.ReadArray() {
			if it.WhatIsNext() != jsoniter.NumberValue {
				return fmt.Errorf("parse: value list element is not a number")
			}
			nums = append(nums, it.ReadFloat64())
		}
		*v = Value{Kind: NumberList, Numbers: nums}
	default:
		return fmt.Errorf("parse: unsupported value shape")
	}
	// The borrowed iterator reports io.EOF when a value ends exactly at
	// the end of the buffer; that is a successful parse, not an error.
	if it.Error != nil && !errors.Is(it.Error, io.EOF) {
		return it.Error
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Null:
		return []byte("null"), nil
	case Bool:
		return strconv.AppendBool(nil, v.Bool), nil
	case Number:
		return json.Marshal(v.Number)
	case String:
		return json.Marshal(v.Str)
	case NumberList:
		return json.Marshal(v.Numbers)
	}
	return nil, fmt.Errorf("parse: unknown value kind %d", v.Kind)
}

// String renders the value for store columns and log previews.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}
