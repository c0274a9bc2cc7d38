// Package device provides the Bluetooth Low Energy (BLE) GATT client session core
// used to talk to a single simple peripheral at a time.
//
// The package covers:
//   - Peripheral addresses and normalized GATT UUIDs
//   - The radio boundary (Radio, Link) implemented by platform adapters
//   - Session lifecycle: connect, resolve, teardown, each bounded by its own timeout
//   - Characteristic read/write/notification-wait on resolved handles
//   - A distinguishable error taxonomy for timeouts, discovery, stale handles and link faults
package device
