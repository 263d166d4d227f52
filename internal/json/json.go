// Package json is the codec used for every signaling frame. It is backed by
// bytedance/sonic with encoding/json compatible semantics.
package json

import (
	stdjson "encoding/json"

	"github.com/bytedance/sonic"
)

// RawMessage is an opaque, already encoded JSON value.
type RawMessage = stdjson.RawMessage

var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}
