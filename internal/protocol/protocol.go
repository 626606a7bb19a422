// Package protocol holds the wire types shared by the daemon channel,
// event stream, drop stream and control channel: requests, replies,
// events, metadata and the columnar type descriptor. Requests are always
// encoded with the binary compact serializer (msgpack); replies are
// encoded with whichever serializer the request variant declares (see
// ReplySerializer).
package protocol

import (
	"github.com/dora-rs/dora-node-go/internal/clock"
)

// DropToken uniquely identifies one shared-memory send. Values are
// generated by sample.Sample.Finalize and are unique within a process
// lifetime.
type DropToken string

// ReplySerializer names which codec a given Request variant expects its
// Reply to be decoded with.
type ReplySerializer int

const (
	// ReplyNone means the request does not expect any reply frame at all.
	ReplyNone ReplySerializer = iota
	// ReplyBinary means the reply is fixed-shape and uses the compact
	// binary (msgpack) codec.
	ReplyBinary
	// ReplyText means the reply has variable-length, optional, or
	// evolving fields and uses the self-describing (JSON) codec.
	ReplyText
)

// RequestKind discriminates the Request tagged union.
type RequestKind string

const (
	KindNodeConfig    RequestKind = "NodeConfig"
	KindRegister      RequestKind = "Register"
	KindSubscribe     RequestKind = "Subscribe"
	KindSubscribeDrop RequestKind = "SubscribeDrop"
	KindSendOutput    RequestKind = "SendOutput"
	KindCloseOutputs  RequestKind = "CloseOutputs"
	KindOutputsDone   RequestKind = "OutputsDone"
	KindNextEvent     RequestKind = "NextEvent"
	KindNextDropToken RequestKind = "NextDropToken"
	KindReportDrop    RequestKind = "ReportDrop"
)

// Request is the tagged union of every message a node may send to its
// daemon. Only the field matching Kind is populated; the rest are nil.
// A flattened struct (instead of an interface per variant) keeps the
// msgpack/jsoniter encoding trivial to reason about and matches how the
// rest of this module's wire types are declared.
type Request struct {
	Kind RequestKind `msgpack:"kind" json:"kind"`

	NodeConfig   *NodeConfigRequest   `msgpack:"node_config,omitempty" json:"node_config,omitempty"`
	Register     *RegisterRequest     `msgpack:"register,omitempty" json:"register,omitempty"`
	SendOutput   *SendOutputRequest   `msgpack:"send_output,omitempty" json:"send_output,omitempty"`
	CloseOutputs *CloseOutputsRequest `msgpack:"close_outputs,omitempty" json:"close_outputs,omitempty"`
	ReportDrop   *ReportDropRequest   `msgpack:"report_drop,omitempty" json:"report_drop,omitempty"`
}

// ReportDropRequest tells the daemon that this node has finished reading
// a shared-memory-backed input it received, so the daemon can relay the
// release back to the region's producer.
type ReportDropRequest struct {
	Token DropToken `msgpack:"token" json:"token"`
}

type NodeConfigRequest struct {
	NodeID string `msgpack:"node_id" json:"node_id"`
}

type RegisterRequest struct {
	DataflowID string `msgpack:"dataflow_id" json:"dataflow_id"`
	NodeID     string `msgpack:"node_id" json:"node_id"`
}

type SendOutputRequest struct {
	OutputID string       `msgpack:"output_id" json:"output_id"`
	Metadata Metadata     `msgpack:"metadata" json:"metadata"`
	Data     *DataMessage `msgpack:"data,omitempty" json:"data,omitempty"`
}

type CloseOutputsRequest struct {
	OutputIDs []string `msgpack:"output_ids" json:"output_ids"`
}

// ExpectedReply reports which serializer (if any) this request's reply
// uses, mirroring the Rust implementation's
// expects_tcp_bincode_reply/expects_tcp_json_reply split.
func (r Request) ExpectedReply() ReplySerializer {
	switch r.Kind {
	case KindNodeConfig:
		return ReplyText // NodeConfig carries the opaque dataflow descriptor: variable shape.
	case KindNextEvent:
		return ReplyText // event batches are variable-length.
	case KindNextDropToken:
		return ReplyBinary
	case KindSendOutput, KindCloseOutputs, KindOutputsDone, KindRegister, KindSubscribe, KindSubscribeDrop, KindReportDrop:
		return ReplyBinary // fixed-shape Empty reply
	default:
		return ReplyBinary
	}
}

// ReplyKind discriminates the Reply tagged union.
type ReplyKind string

const (
	ReplyKindEmpty         ReplyKind = "Empty"
	ReplyKindNodeConfig    ReplyKind = "NodeConfig"
	ReplyKindNextEvent     ReplyKind = "NextEvent"
	ReplyKindNextDropToken ReplyKind = "NextDropToken"
	ReplyKindError         ReplyKind = "Error"
)

type Reply struct {
	Kind ReplyKind `msgpack:"kind" json:"kind"`

	NodeConfig    *NodeConfigReply    `msgpack:"node_config,omitempty" json:"node_config,omitempty"`
	NextEvent     *NextEventReply     `msgpack:"next_event,omitempty" json:"next_event,omitempty"`
	NextDropToken *NextDropTokenReply `msgpack:"next_drop_token,omitempty" json:"next_drop_token,omitempty"`
	Error         *ErrorReply         `msgpack:"error,omitempty" json:"error,omitempty"`
}

type NodeConfigReply struct {
	Config *NodeConfig `msgpack:"config,omitempty" json:"config,omitempty"`
	Err    string      `msgpack:"err,omitempty" json:"err,omitempty"`
}

type NextEventReply struct {
	Events []Event `msgpack:"events" json:"events"`
}

type NextDropTokenReply struct {
	Token *DropToken `msgpack:"token,omitempty" json:"token,omitempty"`
}

type ErrorReply struct {
	Message string `msgpack:"message" json:"message"`
}

// Timestamped pairs a clock reading with an inner value, the
// serialization boundary unit for every message on the wire.
type Timestamped[T any] struct {
	Timestamp clock.Timestamp `msgpack:"timestamp" json:"timestamp"`
	Inner     T               `msgpack:"inner" json:"inner"`
}
