package node

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dora-rs/dora-node-go/eventstream"
	"github.com/dora-rs/dora-node-go/internal/protocol"
)

// nodeConfigEnvVar is the environment variable `dora start` sets,
// carrying the entire NodeConfig in self-describing YAML text.
const nodeConfigEnvVar = "DORA_NODE_CONFIG"

// InitFromEnv reads the node's configuration from the DORA_NODE_CONFIG
// environment variable and initializes it.
func InitFromEnv() (*Node, *eventstream.EventStream, error) {
	raw, ok := os.LookupEnv(nodeConfigEnvVar)
	if !ok {
		return nil, nil, errors.Errorf("env variable %s must be set; are you sure you're using `dora start`?", nodeConfigEnvVar)
	}

	var cfg protocol.NodeConfig
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to deserialize node config")
	}
	return Init(cfg)
}

// InitFromFile reads the node's configuration from the given file
// (self-describing YAML text) and initializes it.
func InitFromFile(path string) (*Node, *eventstream.EventStream, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read node config from %q", path)
	}

	var cfg protocol.NodeConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to deserialize node config")
	}
	return Init(cfg)
}
