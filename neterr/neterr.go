// Package neterr defines the closed set of error kinds raised by the
// dissection, serialization, reassembly, and stream-following subsystems.
package neterr

import "errors"

// Sentinel errors. Callers compose detail via fmt.Errorf("...: %w", Err...)
// and unwrap with errors.Is.
var (
	// ErrMalformedPacket indicates bytes do not conform to a protocol's
	// structure: truncation, an oversized declared length, or an invalid
	// inner length. Raised during dissection.
	ErrMalformedPacket = errors.New("neterr: malformed packet")

	// ErrMalformedOption indicates a TLV option's declared length
	// disagrees with its payload.
	ErrMalformedOption = errors.New("neterr: malformed option")

	// ErrOptionNotFound indicates a typed option accessor was invoked for
	// a missing option.
	ErrOptionNotFound = errors.New("neterr: option not found")

	// ErrSerializationError indicates the output buffer was too small or
	// serialization was impossible given a layer's invariants.
	ErrSerializationError = errors.New("neterr: serialization error")

	// ErrInvalidInterface indicates a send was requested on an
	// unspecified interface (send path only; unused by the core).
	ErrInvalidInterface = errors.New("neterr: invalid interface")

	// ErrInvalidPacket indicates stream/flow extraction was requested
	// from a non-TCP packet.
	ErrInvalidPacket = errors.New("neterr: invalid packet")

	// ErrStreamNotFound indicates find_stream was called on an unknown
	// identifier.
	ErrStreamNotFound = errors.New("neterr: stream not found")

	// ErrFeatureDisabled indicates an operation requiring an optional
	// subsystem (e.g. the ACK tracker) was invoked while that subsystem
	// is disabled.
	ErrFeatureDisabled = errors.New("neterr: feature disabled")

	// ErrPduNotSerializable indicates a layer that does not round-trip
	// (e.g. PPI) was asked to serialize.
	ErrPduNotSerializable = errors.New("neterr: pdu not serializable")

	// ErrCallbackNotSet indicates the stream follower saw a new stream
	// but no new-stream callback is installed.
	ErrCallbackNotSet = errors.New("neterr: callback not set")
)
