package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"fenrir/internal/engine"

	"github.com/google/uuid"
)

var (
	ErrInvalidMessageType = errors.New("transport: invalid message type")
	ErrMessageTooShort    = errors.New("transport: message too short")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
)

type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Wire layouts. Every message starts with a 2-byte MessageType header
// stripped by parseMessage before the type-specific parser runs.
const (
	baseHeaderLen          = 2
	newOrderFixedLen       = 1 + 1 + 8 + 8 + 1 + 1 // side, type, price, quantity, tif, usernameLen
	cancelOrderFixedLen    = 1 + 8 + 16            // side, price, order uuid
	reportFixedHeaderLen   = 1 + 1 + 8 + 8 + 8 + 2 + 4 + 16
	orderUUIDWireLen       = 16
	reportMaxCounterparty  = 1 << 16
)

type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < baseHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]

	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// NewOrderMessage is the wire form of a new limit or market order. The
// matching engine itself never sees a uuid (engine.OrderID is a dense
// uint32); the session layer mints one here purely to give the client a
// handle it can reference in a later CancelOrderMessage.
type NewOrderMessage struct {
	BaseMessage
	Side        engine.Side
	Type        engine.OrderType
	Price       engine.Price
	Quantity    engine.Quantity
	TimeInForce engine.TimeInForce
	UsernameLen uint8
	Username    string
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < newOrderFixedLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.Side = engine.Side(msg[0])
	m.Type = engine.OrderType(msg[1])
	m.Price = binary.BigEndian.Uint64(msg[2:10])
	m.Quantity = binary.BigEndian.Uint64(msg[10:18])
	m.TimeInForce = engine.TimeInForce(msg[18])
	m.UsernameLen = msg[19]

	if len(msg) < newOrderFixedLen+int(m.UsernameLen) {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Username = string(msg[newOrderFixedLen : newOrderFixedLen+int(m.UsernameLen)])
	return m, nil
}

// Order builds the engine.Order this message describes. id is minted by
// the session layer, not carried on the wire.
func (m NewOrderMessage) Order(id engine.OrderID) engine.Order {
	return engine.Order{
		ID:          id,
		Side:        m.Side,
		Type:        m.Type,
		Price:       m.Price,
		Quantity:    m.Quantity,
		TimeInForce: m.TimeInForce,
	}
}

// CancelOrderMessage references a resting order by the uuid carried in
// the execution reports sent for the fills of its NewOrderMessage. No
// report is sent for a new order that produces no fill, so the uuid of
// an order that rests without trading is never sent to the client.
type CancelOrderMessage struct {
	BaseMessage
	Side      engine.Side
	Price     engine.Price
	OrderUUID uuid.UUID
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < cancelOrderFixedLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	m.Side = engine.Side(msg[0])
	m.Price = binary.BigEndian.Uint64(msg[1:9])
	copy(m.OrderUUID[:], msg[9:9+orderUUIDWireLen])
	return m, nil
}

// Report is the wire form of an execution or error acknowledgement sent
// back to a session.
type Report struct {
	MessageType  ReportMessageType
	Side         engine.Side
	Timestamp    uint64
	Quantity     engine.Quantity
	Price        engine.Price
	ErrStrLen    uint32
	OrderUUID    uuid.UUID
	Err          string
	Counterparty string
}

func (r *Report) Serialize() []byte {
	total := reportFixedHeaderLen + len(r.Err) + len(r.Counterparty)
	buf := make([]byte, total)

	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], r.Quantity)
	binary.BigEndian.PutUint64(buf[18:26], r.Price)
	binary.BigEndian.PutUint16(buf[26:28], uint16(len(r.Counterparty)))
	binary.BigEndian.PutUint32(buf[28:32], r.ErrStrLen)
	copy(buf[32:32+orderUUIDWireLen], r.OrderUUID[:])

	offset := reportFixedHeaderLen
	if r.ErrStrLen > 0 {
		copy(buf[offset:], r.Err)
		offset += int(r.ErrStrLen)
	}
	if len(r.Counterparty) > 0 {
		copy(buf[offset:], r.Counterparty)
	}
	return buf
}

// generateTradeReport builds the acknowledgement sent to the side of
// trade identified by orderUUID, describing the fill from that side's
// perspective.
func generateTradeReport(trade engine.Trade, orderUUID uuid.UUID, counterparty string) []byte {
	r := Report{
		MessageType:  ExecutionReport,
		Side:         trade.Side,
		Timestamp:    uint64(time.Now().Unix()),
		Quantity:     trade.Quantity,
		Price:        trade.Price,
		OrderUUID:    orderUUID,
		Counterparty: counterparty,
	}
	return r.Serialize()
}

func generateErrorReport(orderUUID uuid.UUID, err error) []byte {
	errStr := fmt.Sprintf("%s", err)
	r := Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(time.Now().Unix()),
		ErrStrLen:   uint32(len(errStr)),
		OrderUUID:   orderUUID,
		Err:         errStr,
	}
	return r.Serialize()
}
