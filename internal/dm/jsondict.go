// Package dm holds the structural data-model helpers shared by the
// transport layers and the modules: a JSON-like dict that converts
// to and from protobuf Struct so payloads keep one representation
// whether they arrive over HTTP or an RPC embedding.
package dm

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// JSONDict is the generic string-keyed payload exchanged with modules.
// Values are restricted to the JSON kinds: nil, bool, numbers, string,
// []any and nested map[string]any.
type JSONDict = map[string]any

// ToStruct converts a JSONDict into a protobuf Struct. A nil dict yields
// an empty Struct rather than nil so modules never see a nil payload.
func ToStruct(d JSONDict) (*structpb.Struct, error) {
	if d == nil {
		d = JSONDict{}
	}
	return structpb.NewStruct(d)
}

// FromStruct converts a protobuf Struct back into a JSONDict. A nil
// Struct yields an empty dict.
func FromStruct(s *structpb.Struct) JSONDict {
	if s == nil {
		return JSONDict{}
	}
	return s.AsMap()
}
