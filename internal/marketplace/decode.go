package marketplace

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

var (
	moneyType = reflect.TypeOf(Money{})
	timeType  = reflect.TypeOf(time.Time{})
)

// decode converts loosely typed GraphQL data into target.
func decode(input any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			scalarMoneyHook,
			emptyTimeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

// scalarMoneyHook accepts amounts reported either as a bare number or as an object.
func scalarMoneyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != moneyType {
		return data, nil
	}

	switch from.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64, reflect.String:
		return map[string]any{"amount": data}, nil
	default:
		return data, nil
	}
}

func emptyTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to == timeType && from.Kind() == reflect.String && data.(string) == "" {
		return time.Time{}, nil
	}
	return data, nil
}

// lookup walks nested objects by key.
func lookup(data map[string]any, path ...string) (any, bool) {
	var current any = data
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// nodes extracts edges[].node from a connection found at path.
func nodes(data map[string]any, path ...string) ([]any, error) {
	conn, ok := lookup(data, path...)
	if !ok {
		return nil, nil
	}

	var connection struct {
		Edges []struct {
			Node any
		}
	}
	if err := mapstructure.Decode(conn, &connection); err != nil {
		return nil, fmt.Errorf("decode connection %v: %w", path, err)
	}

	result := make([]any, 0, len(connection.Edges))
	for _, edge := range connection.Edges {
		if edge.Node != nil {
			result = append(result, edge.Node)
		}
	}

	return result, nil
}
