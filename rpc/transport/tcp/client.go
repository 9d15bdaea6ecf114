package tcp

import (
	"net"
	"time"

	"github.com/pramitgaha/map-error/rpc/common"
	"github.com/pramitgaha/map-error/rpc/transport"
	"github.com/pramitgaha/map-error/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return tune(conn, config.Transport.TCPNoDelay, config.Transport.TCPKeepAliveSec, -1,
		config.Transport.WriteBufferSize, config.Transport.ReadBufferSize)
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPClientTransport creates a new TCP client transport
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}

// --------------------------------------------------------------------------
// Socket options (shared by client and server)
// --------------------------------------------------------------------------

// tune applies the socket options to a TCP connection. Other connections are left alone.
// Zero sizes and periods keep the system defaults, a negative linger too.
func tune(conn net.Conn, noDelay bool, keepAliveSec, lingerSec, writeBuffer, readBuffer int) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetNoDelay(noDelay); err != nil {
		return err
	}
	if writeBuffer > 0 {
		if err := tcpConn.SetWriteBuffer(writeBuffer); err != nil {
			return err
		}
	}
	if readBuffer > 0 {
		if err := tcpConn.SetReadBuffer(readBuffer); err != nil {
			return err
		}
	}
	if keepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(keepAliveSec) * time.Second); err != nil {
			return err
		}
	}
	if lingerSec >= 0 {
		if err := tcpConn.SetLinger(lingerSec); err != nil {
			return err
		}
	}
	return nil
}
