package netlink

import "errors"

// ErrClosed is returned by Connect after Disconnect.
var ErrClosed = errors.New("netlink: client closed")
