package protocol

import "github.com/dora-rs/dora-node-go/internal/clock"

// BufferOffset locates one flat sub-buffer of a payload.
type BufferOffset struct {
	Offset int64 `msgpack:"offset" json:"offset"`
	Len    int64 `msgpack:"len" json:"len"`
}

// ArrowTypeInfo recursively describes how to locate a columnar array's
// components inside a flat payload buffer.
type ArrowTypeInfo struct {
	// DataTypeJSON is the Arrow logical type serialized as a small JSON
	// document (see arrowdata.EncodeDataType). It is an ordinary string
	// field, so both the binary and the text codec carry it alongside the
	// byte layout fields below.
	DataTypeJSON string `msgpack:"data_type" json:"data_type"`

	Len            int64          `msgpack:"len" json:"len"`
	Offset         int64          `msgpack:"offset" json:"offset"`
	ValidityBytes  []byte         `msgpack:"validity,omitempty" json:"validity,omitempty"`
	BufferOffsets  []BufferOffset `msgpack:"buffer_offsets" json:"buffer_offsets"`
	ChildData      []ArrowTypeInfo `msgpack:"child_data" json:"child_data"`
}

// ByteArrayTypeInfo builds the ArrowTypeInfo for a single flat byte buffer of n
// bytes, used by SendOutputRaw/SendOutputBytes.
func ByteArrayTypeInfo(n int) ArrowTypeInfo {
	return ArrowTypeInfo{
		DataTypeJSON:  `{"name":"uint8"}`,
		Len:           int64(n),
		Offset:        0,
		BufferOffsets: []BufferOffset{{Offset: 0, Len: int64(n)}},
	}
}

// ParameterKind discriminates the MetadataParameters value union.
type ParameterKind string

const (
	ParamBool        ParameterKind = "Bool"
	ParamInt         ParameterKind = "Int"
	ParamFloat       ParameterKind = "Float"
	ParamString      ParameterKind = "String"
	ParamListInt     ParameterKind = "ListInt"
	ParamListFloat   ParameterKind = "ListFloat"
	ParamListString  ParameterKind = "ListString"
)

// ParameterValue is a tagged union over the metadata parameter types
// dora-rs supports (watermark hints, encoding flags, user annotations).
type ParameterValue struct {
	Kind ParameterKind `msgpack:"kind" json:"kind"`

	Bool       *bool     `msgpack:"bool,omitempty" json:"bool,omitempty"`
	Int        *int64    `msgpack:"int,omitempty" json:"int,omitempty"`
	Float      *float64  `msgpack:"float,omitempty" json:"float,omitempty"`
	String     *string   `msgpack:"string,omitempty" json:"string,omitempty"`
	ListInt    []int64   `msgpack:"list_int,omitempty" json:"list_int,omitempty"`
	ListFloat  []float64 `msgpack:"list_float,omitempty" json:"list_float,omitempty"`
	ListString []string  `msgpack:"list_string,omitempty" json:"list_string,omitempty"`
}

func BoolParam(v bool) ParameterValue       { return ParameterValue{Kind: ParamBool, Bool: &v} }
func IntParam(v int64) ParameterValue       { return ParameterValue{Kind: ParamInt, Int: &v} }
func FloatParam(v float64) ParameterValue   { return ParameterValue{Kind: ParamFloat, Float: &v} }
func StringParam(v string) ParameterValue   { return ParameterValue{Kind: ParamString, String: &v} }

// MetadataParameters is an ordered map of user-supplied metadata.
// Keys records insertion order; the Values map itself is encoded in Go
// map iteration order, so its byte layout on the wire may differ
// between sends.
type MetadataParameters struct {
	Keys   []string
	Values map[string]ParameterValue
}

func NewMetadataParameters() MetadataParameters {
	return MetadataParameters{Values: map[string]ParameterValue{}}
}

func (p *MetadataParameters) Set(key string, value ParameterValue) {
	if p.Values == nil {
		p.Values = map[string]ParameterValue{}
	}
	if _, ok := p.Values[key]; !ok {
		p.Keys = append(p.Keys, key)
	}
	p.Values[key] = value
}

// Metadata is attached to every outgoing message and carried on every
// incoming one.
type Metadata struct {
	Timestamp  clock.Timestamp    `msgpack:"timestamp" json:"timestamp"`
	TypeInfo   ArrowTypeInfo      `msgpack:"type_info" json:"type_info"`
	Parameters MetadataParameters `msgpack:"parameters" json:"parameters"`
}

// NewMetadata builds a Metadata value, minting the timestamp from the
// given clock reading (the node facade always supplies a freshly minted
// one).
func NewMetadata(ts clock.Timestamp, typeInfo ArrowTypeInfo, params MetadataParameters) Metadata {
	return Metadata{Timestamp: ts, TypeInfo: typeInfo, Parameters: params}
}
