package mesh

import "context"

// NullLinkDriver is a LinkDriver that satisfies the interface without a
// real BLE radio underneath. ValidateCapabilities always fails with
// ErrCapabilityUnavailable: the platform-specific GATT/advertising
// binding named in §6 as out of scope for this module has no default
// implementation, so a host process wiring up a Controller without one
// gets a clear, immediate error instead of a silently inert radio.
type NullLinkDriver struct {
	events chan LinkEvent
}

// NewNullLinkDriver returns a LinkDriver with a closed event stream.
func NewNullLinkDriver() *NullLinkDriver {
	events := make(chan LinkEvent)
	close(events)
	return &NullLinkDriver{events: events}
}

func (d *NullLinkDriver) ValidateCapabilities() error { return ErrCapabilityUnavailable }
func (d *NullLinkDriver) SetCredentials(string, NodeID) {}
func (d *NullLinkDriver) StartScanning() error          { return ErrCapabilityUnavailable }
func (d *NullLinkDriver) StopScanning() error            { return nil }
func (d *NullLinkDriver) StartAdvertising(AdvertisingConfig) error {
	return ErrCapabilityUnavailable
}
func (d *NullLinkDriver) StopAdvertising() error { return nil }
func (d *NullLinkDriver) ConnectTo(context.Context, string, NodeID) error {
	return ErrCapabilityUnavailable
}
func (d *NullLinkDriver) DisconnectNode(NodeID) error { return nil }
func (d *NullLinkDriver) DisconnectAll() error        { return nil }
func (d *NullLinkDriver) Broadcast([]byte, DataType) error { return ErrCapabilityUnavailable }
func (d *NullLinkDriver) TransportForAddress(string) (TransportStrategy, bool) {
	return nil, false
}
func (d *NullLinkDriver) Events() <-chan LinkEvent { return d.events }
func (d *NullLinkDriver) Destroy() error            { return nil }

// NullAudioEngine is an AudioEngine that discards everything: no mic
// capture, no playback. Used the same way as NullLinkDriver, when no
// platform audio binding has been wired.
type NullAudioEngine struct{}

func (NullAudioEngine) Start() error               { return nil }
func (NullAudioEngine) Stop() error                { return nil }
func (NullAudioEngine) SetMicEnabled(bool)         {}
func (NullAudioEngine) PushIncomingPacket([]byte)  {}
func (NullAudioEngine) SetPacketSink(func([]byte)) {}
func (NullAudioEngine) SetErrorCallback(func(error)) {}
