package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/javieronasis1-eng/administracion-rentas/internal/remote"
)

// Kind names the remote change a SyncMessage carries.
type Kind string

const (
	KindUnit          Kind = "unit"
	KindPayment       Kind = "payment"
	KindPaymentDelete Kind = "payment_delete"
	KindServices      Kind = "services"
	KindFull          Kind = "full"
)

var ErrInvalidMessage = errors.New("invalid sync message")

// SyncMessage is one write-behind change for the remote store. It carries
// the rows themselves so the consumer needs no access to the local cache.
type SyncMessage struct {
	Kind       Kind                   `json:"kind"`
	Unit       *remote.UnitRecord     `json:"unit,omitempty"`
	Payment    *remote.PaymentRecord  `json:"payment,omitempty"`
	PaymentKey *remote.PaymentKey     `json:"payment_key,omitempty"`
	Services   []remote.ServiceRecord `json:"services,omitempty"`
	Snapshot   *remote.Snapshot       `json:"snapshot,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func NewUnitMessage(r remote.UnitRecord) *SyncMessage {
	return &SyncMessage{Kind: KindUnit, Unit: &r, Timestamp: time.Now()}
}

func NewPaymentMessage(r remote.PaymentRecord) *SyncMessage {
	return &SyncMessage{Kind: KindPayment, Payment: &r, Timestamp: time.Now()}
}

func NewPaymentDeleteMessage(k remote.PaymentKey) *SyncMessage {
	return &SyncMessage{Kind: KindPaymentDelete, PaymentKey: &k, Timestamp: time.Now()}
}

// NewServicesMessage carries the complete service list; the remote side
// replaces all of its rows with it.
func NewServicesMessage(rs []remote.ServiceRecord) *SyncMessage {
	if rs == nil {
		rs = []remote.ServiceRecord{}
	}
	return &SyncMessage{Kind: KindServices, Services: rs, Timestamp: time.Now()}
}

func NewFullMessage(s remote.Snapshot) *SyncMessage {
	return &SyncMessage{Kind: KindFull, Snapshot: &s, Timestamp: time.Now()}
}

// Validate checks that the payload required by Kind is present.
func (m *SyncMessage) Validate() error {
	switch m.Kind {
	case KindUnit:
		if m.Unit == nil {
			return fmt.Errorf("%w: %s without unit", ErrInvalidMessage, m.Kind)
		}
	case KindPayment:
		if m.Payment == nil {
			return fmt.Errorf("%w: %s without payment", ErrInvalidMessage, m.Kind)
		}
	case KindPaymentDelete:
		if m.PaymentKey == nil {
			return fmt.Errorf("%w: %s without key", ErrInvalidMessage, m.Kind)
		}
	case KindServices:
		// an empty list is a valid "delete everything"
	case KindFull:
		if m.Snapshot == nil {
			return fmt.Errorf("%w: %s without snapshot", ErrInvalidMessage, m.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON decodes and validates a message.
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
