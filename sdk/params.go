package sdk

import (
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/fatih/structs"
	"github.com/mitchellh/mapstructure"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// toParams flattens a request struct into snake_case keys using its structs tags.
// Zero values tagged omitempty are dropped.
func toParams(v any) map[string]any {
	return structs.Map(v)
}

// toValues renders a request struct as query string values.
func toValues(v any, extra map[string]string) url.Values {
	values := url.Values{}
	for k, val := range toParams(v) {
		values.Set(k, fmt.Sprint(val))
	}
	for k, val := range extra {
		values.Set(k, val)
	}
	return values
}

// toBody renders a request struct as a JSON body map, merging extra fields
// without overwriting the typed ones.
func toBody(v any, extra map[string]string) map[string]any {
	body := toParams(v)
	for k, val := range extra {
		if _, ok := body[k]; !ok {
			body[k] = val
		}
	}
	return body
}

// decodeTransaction maps an anchor transaction object onto walletsdk.Transaction,
// keeping the original object in Raw.
func decodeTransaction(raw map[string]any) (walletsdk.Transaction, error) {
	var tx walletsdk.Transaction
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &tx,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       timeHook,
	})
	if err != nil {
		return tx, err
	}
	if err := decoder.Decode(raw); err != nil {
		return tx, errors.NewClientError(errors.INVALID_RESPONSE, "failed to decode transaction", err)
	}
	tx.Raw = raw
	return tx, nil
}

var timeType = reflect.TypeOf(time.Time{})

// timeHook parses RFC 3339 timestamps. Empty strings decode to the zero time.
func timeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != timeType {
		return data, nil
	}
	s := data.(string)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
