// Package transport is the command-ingestion shim around the matching
// engine: it decodes wire messages into engine.Order values, serializes
// every book mutation through a single session-handler goroutine (the
// engine itself holds no locks), and reports trades and errors back to
// the sessions that produced them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"fenrir/internal/engine"
	"fenrir/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("transport: improper task conversion")
	ErrClientDoesNotExist = errors.New("transport: client does not exist")
)

// ClientSession is a connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a decoded message to the session it arrived on.
type ClientMessage struct {
	clientAddress string
	message       Message
}

// orderRef resolves a client-visible uuid back to the engine's internal
// selector, so a later CancelOrderMessage never has to carry the dense
// engine.OrderID on the wire.
type orderRef struct {
	id    engine.OrderID
	owner string
}

// Server owns one symbol's OrderBook and the TCP sessions submitting
// orders against it. Every book mutation runs on the sessionHandler
// goroutine; workers only decode bytes and hand messages off.
type Server struct {
	address string
	port    int

	book *engine.OrderBook

	pool   utils.WorkerPool
	cancel context.CancelFunc

	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage

	orderIndex     map[uuid.UUID]orderRef
	orderIndexLock sync.Mutex

	nextOrderID     engine.OrderID
	nextOrderIDLock sync.Mutex
}

func New(address string, port int, book *engine.OrderBook) *Server {
	return &Server{
		address:        address,
		port:           port,
		book:           book,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
		orderIndex:     make(map[uuid.UUID]orderRef),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().Str("address", conn.RemoteAddr().String()).Msg("new client session")
			s.addClientSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler is the only goroutine that ever touches s.book, making
// the engine's single-threaded assumption hold.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.clientMessages:
			if err := s.handleMessage(msg); err != nil {
				log.Error().Err(err).Str("client", msg.clientAddress).Msg("error handling message")
				s.reportError(msg.clientAddress, uuid.Nil, err)
			}
		}
	}
}

func (s *Server) handleMessage(msg ClientMessage) error {
	switch msg.message.GetType() {
	case NewOrder:
		order, ok := msg.message.(NewOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		return s.handleNewOrder(msg.clientAddress, order)
	case CancelOrder:
		cancel, ok := msg.message.(CancelOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		return s.handleCancelOrder(msg.clientAddress, cancel)
	case Heartbeat:
		return nil
	default:
		return ErrInvalidMessageType
	}
}

func (s *Server) handleNewOrder(clientAddress string, m NewOrderMessage) error {
	id := s.mintOrderID()
	orderUUID := uuid.New()

	s.orderIndexLock.Lock()
	s.orderIndex[orderUUID] = orderRef{id: id, owner: m.Username}
	s.orderIndexLock.Unlock()

	trades := s.book.InsertOrder(m.Order(id))
	for _, trade := range trades {
		s.reportTrade(clientAddress, trade, orderUUID)
	}
	return nil
}

func (s *Server) handleCancelOrder(clientAddress string, m CancelOrderMessage) error {
	s.orderIndexLock.Lock()
	ref, ok := s.orderIndex[m.OrderUUID]
	if ok {
		delete(s.orderIndex, m.OrderUUID)
	}
	s.orderIndexLock.Unlock()

	if !ok {
		return fmt.Errorf("transport: unknown order %s", m.OrderUUID)
	}

	_, err := s.book.CancelOrder(engine.OrderSelector{ID: ref.id, Side: m.Side, Price: m.Price})
	return err
}

func (s *Server) mintOrderID() engine.OrderID {
	s.nextOrderIDLock.Lock()
	defer s.nextOrderIDLock.Unlock()
	s.nextOrderID++
	return s.nextOrderID
}

func (s *Server) reportTrade(clientAddress string, trade engine.Trade, orderUUID uuid.UUID) {
	s.clientSessionsLock.Lock()
	client, ok := s.clientSessions[clientAddress]
	s.clientSessionsLock.Unlock()
	if !ok {
		return
	}

	report := generateTradeReport(trade, orderUUID, fmt.Sprintf("maker#%d", trade.MakerID))
	if _, err := client.conn.Write(report); err != nil {
		log.Error().Err(err).Str("client", clientAddress).Msg("unable to send trade report")
		s.deleteClientSession(clientAddress)
	}
}

func (s *Server) reportError(clientAddress string, orderUUID uuid.UUID, reportErr error) {
	s.clientSessionsLock.Lock()
	client, ok := s.clientSessions[clientAddress]
	s.clientSessionsLock.Unlock()
	if !ok {
		return
	}

	report := generateErrorReport(orderUUID, reportErr)
	if _, err := client.conn.Write(report); err != nil {
		log.Error().Err(err).Str("client", clientAddress).Msg("unable to send error report")
		s.deleteClientSession(clientAddress)
	}
}

// handleConnection reads one message off conn, decodes it, and hands it
// to the session handler, then requeues the connection for its next
// message. Any error returned here is fatal to the worker.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	closeConn := func() {
		if err := conn.Close(); err != nil {
			log.Error().Str("address", conn.RemoteAddr().String()).Err(err).Msg("error closing connection")
		}
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("failed setting connection deadline")
		closeConn()
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		closeConn()
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error reading connection")
			s.deleteClientSession(conn.RemoteAddr().String())
			closeConn()
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error parsing message")
			s.deleteClientSession(conn.RemoteAddr().String())
			closeConn()
			return nil
		}

		s.clientMessages <- ClientMessage{
			clientAddress: conn.RemoteAddr().String(),
			message:       message,
		}
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{conn: conn}
}

func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()
	delete(s.clientSessions, address)
}
