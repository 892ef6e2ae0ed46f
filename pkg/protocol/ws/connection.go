package ws

import (
	"bytes"
	"compress/flate"
	"crypto/tls"
	"io"
	"net"

	"github.com/gobwas/httphead"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/net/proxy"

	"parley.dev/pkg/utils/chk"
	"parley.dev/pkg/utils/context"
	"parley.dev/pkg/utils/errorf"
)

// Connection is one outbound client to relay websocket, with
// permessage-deflate negotiated when the relay supports it.
type Connection struct {
	conn              net.Conn
	enableCompression bool
	controlHandler    wsutil.FrameHandlerFunc
	flateReader       *wsflate.Reader
	reader            *wsutil.Reader
	flateWriter       *wsflate.Writer
	writer            *wsutil.Writer
	msgStateR         *wsflate.MessageState
	msgStateW         *wsflate.MessageState
}

// NewConnection dials url and completes the websocket handshake. A
// ConnectionProxy mode routes the dial through the SOCKS5 proxy address.
func NewConnection(
	c context.T, url string, opts *Options, tlsConfig *tls.Config,
) (connection *Connection, err error) {
	dialer := ws.Dialer{
		Header: ws.HandshakeHeaderHTTP(opts.RequestHeader),
		Extensions: []httphead.Option{
			wsflate.DefaultParameters.Option(),
		},
		TLSConfig: tlsConfig,
	}
	if opts.ConnectionMode == ConnectionProxy && opts.ProxyAddr != "" {
		var pd proxy.Dialer
		if pd, err = proxy.SOCKS5(
			"tcp", opts.ProxyAddr, nil, proxy.Direct,
		); chk.E(err) {
			return
		}
		dialer.NetDial = func(
			ctx context.T, network, addr string,
		) (net.Conn, error) {
			return pd.Dial(network, addr)
		}
	}
	conn, _, hs, err := dialer.Dial(c, url)
	if err != nil {
		return nil, err
	}
	enableCompression := false
	state := ws.StateClientSide
	for _, extension := range hs.Extensions {
		if string(extension.Name) == wsflate.ExtensionName {
			enableCompression = true
			state |= ws.StateExtended
			break
		}
	}
	var flateReader *wsflate.Reader
	var msgStateR wsflate.MessageState
	if enableCompression {
		msgStateR.SetCompressed(true)
		flateReader = wsflate.NewReader(
			nil, func(r io.Reader) wsflate.Decompressor {
				return flate.NewReader(r)
			},
		)
	}
	controlHandler := wsutil.ControlFrameHandler(conn, ws.StateClientSide)
	reader := &wsutil.Reader{
		Source:         conn,
		State:          state,
		OnIntermediate: controlHandler,
		CheckUTF8:      false,
		Extensions: []wsutil.RecvExtension{
			&msgStateR,
		},
	}
	var flateWriter *wsflate.Writer
	var msgStateW wsflate.MessageState
	if enableCompression {
		msgStateW.SetCompressed(true)
		flateWriter = wsflate.NewWriter(
			nil, func(w io.Writer) wsflate.Compressor {
				fw, _ := flate.NewWriter(w, 4)
				return fw
			},
		)
	}
	writer := wsutil.NewWriter(conn, state, ws.OpText)
	writer.SetExtensions(&msgStateW)
	return &Connection{
		conn:              conn,
		enableCompression: enableCompression,
		controlHandler:    controlHandler,
		flateReader:       flateReader,
		reader:            reader,
		msgStateR:         &msgStateR,
		flateWriter:       flateWriter,
		writer:            writer,
		msgStateW:         &msgStateW,
	}, nil
}

// WriteMessage sends one text frame.
func (cn *Connection) WriteMessage(c context.T, data []byte) (err error) {
	select {
	case <-c.Done():
		return errorf.D("%s context canceled", cn.conn.RemoteAddr())
	default:
	}
	if cn.msgStateW.IsCompressed() && cn.enableCompression {
		cn.flateReset()
		if _, err = io.Copy(
			cn.flateWriter, bytes.NewReader(data),
		); chk.T(err) {
			return errorf.D(
				"%s failed to write message: %v", cn.conn.RemoteAddr(), err,
			)
		}
		if err = cn.flateWriter.Close(); chk.T(err) {
			return errorf.D(
				"%s failed to close flate writer: %v",
				cn.conn.RemoteAddr(), err,
			)
		}
	} else {
		if _, err = io.Copy(
			cn.writer, bytes.NewReader(data),
		); chk.T(err) {
			return errorf.D(
				"%s failed to write message: %v", cn.conn.RemoteAddr(), err,
			)
		}
	}
	if err = cn.writer.Flush(); chk.T(err) {
		return errorf.D(
			"%s failed to flush writer: %v", cn.conn.RemoteAddr(), err,
		)
	}
	return
}

func (cn *Connection) flateReset() { cn.flateWriter.Reset(cn.writer) }

// ReadMessage reads the next data frame into buf, handling control frames
// inline and enforcing maxSize.
func (cn *Connection) ReadMessage(
	c context.T, buf *bytes.Buffer, maxSize int,
) (err error) {
	for {
		select {
		case <-c.Done():
			return errorf.T("%s context canceled", cn.conn.RemoteAddr())
		default:
		}
		var h ws.Header
		if h, err = cn.reader.NextFrame(); err != nil {
			cn.conn.Close()
			return errorf.D(
				"%s failed to advance frame: %v", cn.conn.RemoteAddr(), err,
			)
		}
		if h.OpCode.IsControl() {
			if err = cn.controlHandler(h, cn.reader); chk.T(err) {
				return errorf.D(
					"%s failed to handle control frame: %v",
					cn.conn.RemoteAddr(), err,
				)
			}
		} else if h.OpCode == ws.OpBinary || h.OpCode == ws.OpText {
			break
		}
		if err = cn.reader.Discard(); chk.T(err) {
			return errorf.D(
				"%s failed to discard frame: %v", cn.conn.RemoteAddr(), err,
			)
		}
	}
	var src io.Reader = cn.reader
	if cn.msgStateR.IsCompressed() && cn.enableCompression {
		cn.flateReader.Reset(cn.reader)
		src = cn.flateReader
	}
	lim := io.LimitReader(src, int64(maxSize)+1)
	if _, err = io.Copy(buf, lim); chk.T(err) {
		return errorf.D(
			"%s failed to read message: %v", cn.conn.RemoteAddr(), err,
		)
	}
	if buf.Len() > maxSize {
		return errorf.D(
			"%s inbound message exceeds limit of %d bytes",
			cn.conn.RemoteAddr(), maxSize,
		)
	}
	return
}

// Close shuts the socket.
func (cn *Connection) Close() (err error) { return cn.conn.Close() }
