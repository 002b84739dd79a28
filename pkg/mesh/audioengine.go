package mesh

// AudioEngine is the opaque PTT/jitter/decoder capability the core
// delegates to (§6). It is out of scope for this module: codec, jitter
// buffering, OS audio focus/routing, and UI all live behind this
// interface.
type AudioEngine interface {
	Start() error
	Stop() error

	// SetMicEnabled toggles push-to-talk capture.
	SetMicEnabled(enabled bool)

	// PushIncomingPacket delivers a decoded-ready voice frame received
	// from the mesh to the audio engine for playback.
	PushIncomingPacket(b []byte)

	// SetPacketSink registers the callback invoked (from the audio
	// engine's own thread) whenever an encoded voice frame is ready for
	// transmission. The controller wires sink -> broadcast(., Audio).
	SetPacketSink(sink func(b []byte))

	// SetErrorCallback registers a callback for engine-reported errors
	// (e.g. codec failure, device loss).
	SetErrorCallback(cb func(err error))
}
