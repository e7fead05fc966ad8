// Package transport defines the driver contract the mesh core consumes.
// The BLE radio itself (advertising, scanning, GATT I/O, platform
// background-mode quirks) lives behind this interface; the core only sees
// peer sightings and byte streams.
package transport

// BLE surface advertised by conforming drivers.
const (
	ServiceUUID        = "F47B5E2D-4A9E-4C5A-9B3F-8E1D2C3A4B5C"
	CharacteristicUUID = "A1B2C3D4-E5F6-4A5B-8C9D-0E1F2A3B4C5D"

	// Manufacturer-data company id carrying the combined public-key
	// digest on platforms that allow it.
	ManufacturerID = 0xFFFF

	// Per-write budget for a single GATT write; larger packets fragment.
	DefaultMTU = 512
)

// Handler receives transport events. The mesh coordinator implements it
// and turns every call into an event on its loop; drivers may invoke the
// handler from any goroutine.
type Handler interface {
	// HandlePeerSeen fires on an advertisement or connection from a
	// neighbor. digest optionally carries the peer's 32-byte combined
	// public-key digest from manufacturer data; rssi is the last observed
	// signal strength, 0 when unknown.
	HandlePeerSeen(peerID string, rssi int, digest []byte)

	// HandlePeerLost fires when the link to a neighbor drops.
	HandlePeerLost(peerID string)

	// HandleBytes delivers one inbound packet from a directly connected
	// neighbor. peerID names the local link the bytes arrived on, not
	// necessarily the original sender.
	HandleBytes(peerID string, data []byte)
}

// Driver is the narrow surface the core drives.
type Driver interface {
	// Start brings the radio up (advertising + scanning). A permission
	// failure surfaces here.
	Start(h Handler) error

	// Stop tears the radio down; no handler calls after Stop returns.
	Stop()

	// Send writes to one connected neighbor.
	Send(peerID string, data []byte) error

	// Broadcast writes to every connected neighbor, skipping the link the
	// packet arrived on when exceptPeer is non-empty.
	Broadcast(data []byte, exceptPeer string) error

	// MTU returns the per-write byte budget.
	MTU() int
}
