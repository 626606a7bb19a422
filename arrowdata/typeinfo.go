package arrowdata

import (
	"encoding/json"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/pkg/errors"
)

// typeSpec is the minimal JSON shape ArrowTypeInfo.DataTypeJSON carries
// on the wire: enough to round-trip the handful of Arrow logical types
// this transport needs without pulling in Arrow's much larger schema
// IPC machinery (out of scope: dataflow graph/schema negotiation is a
// daemon/coordinator concern).
type typeSpec struct {
	Name  string    `json:"name"`
	Child *typeSpec `json:"child,omitempty"`
}

// EncodeDataType serializes an Arrow logical type to the wire JSON shape.
func EncodeDataType(dt arrow.DataType) (string, error) {
	spec, err := specFromDataType(dt)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode arrow data type")
	}
	return string(raw), nil
}

func specFromDataType(dt arrow.DataType) (typeSpec, error) {
	switch t := dt.(type) {
	case *arrow.BinaryType:
		return typeSpec{Name: "binary"}, nil
	case *arrow.StringType:
		return typeSpec{Name: "utf8"}, nil
	case *arrow.Uint8Type:
		return typeSpec{Name: "uint8"}, nil
	case *arrow.Int32Type:
		return typeSpec{Name: "int32"}, nil
	case *arrow.Int64Type:
		return typeSpec{Name: "int64"}, nil
	case *arrow.Float32Type:
		return typeSpec{Name: "float32"}, nil
	case *arrow.Float64Type:
		return typeSpec{Name: "float64"}, nil
	case *arrow.ListType:
		child, err := specFromDataType(t.Elem())
		if err != nil {
			return typeSpec{}, err
		}
		return typeSpec{Name: "list", Child: &child}, nil
	default:
		return typeSpec{}, errors.Errorf("unsupported arrow type %s", dt)
	}
}

// DecodeDataType parses the wire JSON shape back into an Arrow logical
// type.
func DecodeDataType(raw string) (arrow.DataType, error) {
	var spec typeSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, errors.Wrap(err, "failed to decode arrow data type")
	}
	return dataTypeFromSpec(spec)
}

func dataTypeFromSpec(spec typeSpec) (arrow.DataType, error) {
	switch spec.Name {
	case "binary":
		return arrow.BinaryTypes.Binary, nil
	case "utf8":
		return arrow.BinaryTypes.String, nil
	case "uint8":
		return arrow.PrimitiveTypes.Uint8, nil
	case "int32":
		return arrow.PrimitiveTypes.Int32, nil
	case "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "float32":
		return arrow.PrimitiveTypes.Float32, nil
	case "float64":
		return arrow.PrimitiveTypes.Float64, nil
	case "list":
		if spec.Child == nil {
			return nil, errors.New("list type descriptor missing child")
		}
		elem, err := dataTypeFromSpec(*spec.Child)
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil
	default:
		return nil, errors.Errorf("unsupported arrow type name %q", spec.Name)
	}
}
