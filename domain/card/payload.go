package card

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pyama86/slaffic-ticket/domain/model"
)

var ErrMalformedPayload = errors.New("malformed callback payload")

type Kind string

const (
	KindTicket     Kind = "ticket"
	KindDepartment Kind = "dept"
)

// ActionSelect は部署選択ボタンの操作
const ActionSelect model.Action = "select"

const payloadSeparator = "|"

// Payload はボタンの value に埋め込むコールバック情報
type Payload struct {
	Kind   Kind
	Action model.Action
	Target string
}

func TicketPayload(action model.Action, ticketID string) Payload {
	return Payload{Kind: KindTicket, Action: action, Target: ticketID}
}

func DepartmentPayload(dept model.Department) Payload {
	return Payload{Kind: KindDepartment, Action: ActionSelect, Target: string(dept)}
}

func (p Payload) Encode() string {
	return strings.Join([]string{string(p.Kind), string(p.Action), p.Target}, payloadSeparator)
}

func ParsePayload(raw string) (Payload, error) {
	parts := strings.Split(raw, payloadSeparator)
	if len(parts) != 3 {
		return Payload{}, fmt.Errorf("%w: %q", ErrMalformedPayload, raw)
	}
	p := Payload{Kind: Kind(parts[0]), Action: model.Action(parts[1]), Target: parts[2]}
	if p.Target == "" {
		return Payload{}, fmt.Errorf("%w: empty target: %q", ErrMalformedPayload, raw)
	}

	switch p.Kind {
	case KindTicket:
		if !p.Action.Valid() {
			return Payload{}, fmt.Errorf("%w: unknown ticket action: %q", ErrMalformedPayload, raw)
		}
	case KindDepartment:
		if p.Action != ActionSelect {
			return Payload{}, fmt.Errorf("%w: unknown department action: %q", ErrMalformedPayload, raw)
		}
	default:
		return Payload{}, fmt.Errorf("%w: unknown kind: %q", ErrMalformedPayload, raw)
	}
	return p, nil
}
