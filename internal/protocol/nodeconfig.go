package protocol

// DefaultDaemonPort is the well-known local daemon listen port.
const DefaultDaemonPort = 53291

// DefaultDaemonHost is the default host a node dials when no remote
// address is supplied.
const DefaultDaemonHost = "127.0.0.1"

// DaemonCommunicationKind discriminates the DaemonCommunication union.
type DaemonCommunicationKind string

const (
	DaemonCommTCP   DaemonCommunicationKind = "Tcp"
	DaemonCommShmem DaemonCommunicationKind = "Shmem"
)

// DaemonCommunication describes how a node should reach its daemon.
type DaemonCommunication struct {
	Kind DaemonCommunicationKind `msgpack:"kind" json:"kind"`

	Tcp   *TCPDaemonCommunication   `msgpack:"tcp,omitempty" json:"tcp,omitempty"`
	Shmem *ShmemDaemonCommunication `msgpack:"shmem,omitempty" json:"shmem,omitempty"`
}

type TCPDaemonCommunication struct {
	SocketAddr string `msgpack:"socket_addr" json:"socket_addr"`
}

type ShmemDaemonCommunication struct {
	DaemonControlRegionID string `msgpack:"daemon_control_region_id" json:"daemon_control_region_id"`
	DaemonEventsRegionID  string `msgpack:"daemon_events_region_id" json:"daemon_events_region_id"`
	DaemonDropRegionID    string `msgpack:"daemon_drop_region_id" json:"daemon_drop_region_id"`
}

// NodeRunConfig is immutable after init: the declared set of output
// identifiers a node may send. Input declarations are implicit via
// events.
type NodeRunConfig struct {
	Outputs []string `msgpack:"outputs" json:"outputs" yaml:"outputs"`
}

// NodeConfig is the full configuration handed to Node.Init, either
// supplied directly, read from the DORA_NODE_CONFIG environment
// variable, read from a file, or bootstrapped from the daemon via
// InitFromNodeID.
type NodeConfig struct {
	DataflowID          string              `msgpack:"dataflow_id" json:"dataflow_id" yaml:"dataflow_id"`
	NodeID              string              `msgpack:"node_id" json:"node_id" yaml:"node_id"`
	RunConfig           NodeRunConfig       `msgpack:"run_config" json:"run_config" yaml:"run_config"`
	DaemonCommunication DaemonCommunication `msgpack:"daemon_communication" json:"daemon_communication" yaml:"daemon_communication"`
	// DataflowDescriptor is the opaque, already-parsed dataflow graph
	// the daemon resolved for this node. It is not interpreted by this
	// module (dataflow graph parsing is out of scope).
	DataflowDescriptor map[string]any `msgpack:"dataflow_descriptor" json:"dataflow_descriptor" yaml:"dataflow_descriptor"`
}
