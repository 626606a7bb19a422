package node

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/arrowdata"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/sample"
)

// SendOutputRaw allocates a sample of data_len, lets write fill it, and
// sends it tagged as a flat byte-array type.
func (n *Node) SendOutputRaw(outputID string, params protocol.MetadataParameters, dataLen int, write func([]byte)) error {
	smp, err := n.allocateSample(dataLen)
	if err != nil {
		return err
	}
	write(smp.Bytes())
	return n.SendOutputSample(outputID, protocol.ByteArrayTypeInfo(dataLen), params, smp)
}

// SendOutputBytes copies data into a freshly allocated sample and sends
// it.
func (n *Node) SendOutputBytes(outputID string, params protocol.MetadataParameters, data []byte) error {
	return n.SendOutputRaw(outputID, params, len(data), func(buf []byte) {
		copy(buf, data)
	})
}

// SendTypedOutput allocates a sample of dataLen, lets write fill it, and
// sends it tagged with an explicit type descriptor.
func (n *Node) SendTypedOutput(outputID string, typeInfo protocol.ArrowTypeInfo, params protocol.MetadataParameters, dataLen int, write func([]byte)) error {
	smp, err := n.allocateSample(dataLen)
	if err != nil {
		return err
	}
	write(smp.Bytes())
	return n.SendOutputSample(outputID, typeInfo, params, smp)
}

// SendOutput computes the size required to flatten arr, allocates a
// sample, copies the array's buffers into it, and sends it.
func (n *Node) SendOutput(outputID string, params protocol.MetadataParameters, arr arrow.Array) error {
	total := arrowdata.RequiredSize(arr)
	smp, err := n.allocateSample(total)
	if err != nil {
		return err
	}
	typeInfo, err := arrowdata.CopyInto(smp.Bytes(), arr)
	if err != nil {
		return errors.Wrap(err, "failed to copy array into sample")
	}
	return n.SendOutputSample(outputID, typeInfo, params, smp)
}

// SendOutputSample is the common send path every other Send* helper
// funnels through: it drains reclaimable drop tokens, validates the
// output id, mints a timestamp, finalizes the sample, and ships the
// message over the control channel.
func (n *Node) SendOutputSample(outputID string, typeInfo protocol.ArrowTypeInfo, params protocol.MetadataParameters, smp *sample.Sample) error {
	if err := n.drainDropTokens(); err != nil {
		return err
	}

	if _, ok := n.outputs[outputID]; !ok {
		return errors.Wrapf(ErrUnknownOutput, "output %q", outputID)
	}

	metadata := protocol.NewMetadata(n.clock.New(), typeInfo, params)

	var data *protocol.DataMessage
	if smp != nil {
		msg, shared, err := smp.Finalize()
		if err != nil {
			return errors.Wrap(err, "failed to finalize sample")
		}
		n.registerFinalizedShared(shared)
		data = &msg
	}

	if err := n.control.SendMessage(outputID, metadata, data); err != nil {
		return errors.Wrapf(err, "failed to send output %q", outputID)
	}
	return nil
}
