package eval

import (
	"reflect"

	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var jsonValueType = reflect.TypeOf(&structpb.Value{})

// ToJSON encodes an evaluation result as JSON. Numbers are encoded as JSON numbers and
// bytes as base64 strings.
func ToJSON(val ref.Val) ([]byte, error) {
	native, err := val.ConvertToNative(jsonValueType)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(native.(*structpb.Value)) //nolint:errcheck // the type is requested above
}
