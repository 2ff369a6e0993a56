package domain

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Decode copies a document into a typed entity using its json field names.
// Numeric strings and RFC 3339 timestamps are converted.
func Decode(doc Document, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			timePassthroughHook,
		),
	})
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(doc)); err != nil {
		return fmt.Errorf("decode %s: %w", doc.ID(), err)
	}
	return nil
}

// timePassthroughHook keeps time.Time values intact instead of letting
// mapstructure try to decode them field by field.
func timePassthroughHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	if t, ok := data.(time.Time); ok {
		return t, nil
	}
	if from.Kind() == reflect.Ptr {
		if t, ok := data.(*time.Time); ok && t != nil {
			return *t, nil
		}
	}
	return data, nil
}

// ServiceFromDocument decodes a service and attaches its location when the
// latitude/longitude fields are usable.
func ServiceFromDocument(doc Document) (Service, error) {
	var s Service
	clean := doc.Clone()
	delete(clean, "location")
	if err := Decode(clean, &s); err != nil {
		return Service{}, err
	}
	s.ID = doc.ID()
	s.Location = doc.Coordinates("latitude", "longitude")
	return s, nil
}
