package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"nhooyr.io/websocket"
)

// WSServer accepts client sessions over websocket.
type WSServer struct {
	port int
	tls  *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port int
	TLS  *TLSConfig
}

func NewWSServer(opts NewWSServerOptions) *WSServer {
	return &WSServer{
		port: opts.Port,
		tls:  opts.TLS,
	}
}

// ConnectHandler is called once per accepted session and returns its id.
type ConnectHandler func(conn *websocket.Conn) string

// DisconnectHandler is called when a session ends.
type DisconnectHandler func(clientID string)

// MessageHandler is called for every message a session sends. binary
// reports the framing the message arrived in.
type MessageHandler func(ctx context.Context, clientID string, message *messages.Message, binary bool)

// Handler returns the http handler that upgrades requests to sessions.
func (s *WSServer) Handler(ctx context.Context, onConnect ConnectHandler, onDisconnect DisconnectHandler, onMessage MessageHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			log.Error("Failed to accept websocket: %v", err)
			return
		}
		conn.SetReadLimit(messages.MessageBufferSize)
		log.Debug("New websocket connection from %s", r.RemoteAddr)
		s.handleWSConnection(ctx, conn, onConnect, onDisconnect, onMessage)
	})
}

// Start serves sessions until ctx is done.
func (s *WSServer) Start(ctx context.Context, onConnect ConnectHandler, onDisconnect DisconnectHandler, onMessage MessageHandler) {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler(ctx, onConnect, onDisconnect, onMessage))

	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut down websocket server: %v", err)
		}
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("Websocket server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("Websocket server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("Websocket server closed")
			return
		}
		log.Error("Websocket server error: %v", err)
	}
}

// handleWSConnection reads messages until the session ends. Messages are
// handled in arrival order.
func (s *WSServer) handleWSConnection(ctx context.Context, conn *websocket.Conn, onConnect ConnectHandler, onDisconnect DisconnectHandler, onMessage MessageHandler) {
	clientID := onConnect(conn)
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		onDisconnect(clientID)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		message, binary, err := ReadMessageFromWS(ctx, conn)
		if err != nil {
			var protoErr *messages.ProtocolError
			if errors.As(err, &protoErr) || isParseError(err) {
				log.Warn("Dropped malformed message from %s: %v", clientID, err)
				continue
			}
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Error("Error reading websocket message from %s: %v", clientID, err)
			}
			log.Trace("Connection closed for %s", clientID)
			return
		}
		onMessage(ctx, clientID, message, binary)
	}
}

// WriteMessageToWS writes a message as Value text or as a compressed frame.
func WriteMessageToWS(ctx context.Context, conn *websocket.Conn, msg *messages.Message, binary bool, sequence uint32) error {
	if !binary {
		if err := conn.Write(ctx, websocket.MessageText, []byte(messages.Encode(msg))); err != nil {
			return fmt.Errorf("failed to write message to websocket connection: %v", err)
		}
		return nil
	}

	b, err := messages.SerializeFrame(msg, sequence)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return fmt.Errorf("failed to write message to websocket connection: %v", err)
	}
	return nil
}

// ReadMessageFromWS reads one message. A malformed message yields a decode
// error while the connection stays usable.
func ReadMessageFromWS(ctx context.Context, conn *websocket.Conn) (*messages.Message, bool, error) {
	typ, b, err := conn.Read(ctx)
	if err != nil {
		return nil, false, err
	}
	if typ == websocket.MessageBinary {
		msg, _, err := messages.DeserializeFrame(b)
		if err != nil {
			return nil, true, &messages.ProtocolError{Reason: "undecodable frame", Err: err}
		}
		return msg, true, nil
	}
	msg, err := messages.Decode(string(b))
	if err != nil {
		return nil, false, err
	}
	return msg, false, nil
}
