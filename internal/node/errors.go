package node

import "errors"

// ErrTransportClosed is returned when the node tries to send a reply on a
// transport that reports itself closed. Poll does not return it: a transport
// that is closed when Poll is entered is treated as having no data.
var ErrTransportClosed = errors.New("node: transport closed")
