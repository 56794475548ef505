package errors

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Payload is the transport form of an error. It carries exactly the fields
// that determine Error() so the rebuilt error renders identically.
type Payload struct {
	Type    ErrorType
	Message string
	Cause   *string
	Details map[string]string
}

// payloadJSON is the encoded Payload. Text travels as bytes because JSON
// strings cannot hold invalid UTF-8 and the encoder would replace it.
type payloadJSON struct {
	Type     ErrorType         `json:"type"`
	Message  []byte            `json:"message"`
	Cause    []byte            `json:"cause,omitempty"`
	HasCause bool              `json:"has_cause,omitempty"`
	Details  map[string][]byte `json:"details,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := payloadJSON{Type: p.Type, Message: []byte(p.Message)}
	if p.Cause != nil {
		out.Cause = []byte(*p.Cause)
		out.HasCause = true
	}
	if len(p.Details) > 0 {
		out.Details = make(map[string][]byte, len(p.Details))
		for k, v := range p.Details {
			out.Details[k] = []byte(v)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var in payloadJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Payload{Type: in.Type, Message: string(in.Message)}
	if in.HasCause {
		cause := string(in.Cause)
		p.Cause = &cause
	}
	if len(in.Details) > 0 {
		p.Details = make(map[string]string, len(in.Details))
		for k, v := range in.Details {
			p.Details[k] = string(v)
		}
	}
	return nil
}

// remoteCause stands in for a cause that only survives as text.
type remoteCause struct {
	text string
}

func (c *remoteCause) Error() string { return c.text }

// ToPayload converts err into its transport form. Errors that are not an
// *Error are classified as internal with their text as the message.
func ToPayload(err error) *Payload {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		return &Payload{Type: ErrorTypeInternal, Message: err.Error()}
	}

	p := &Payload{Type: e.Type, Message: e.Message}
	if e.Cause != nil {
		text := e.Cause.Error()
		p.Cause = &text
	}
	if len(e.Details) > 0 {
		p.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			p.Details[k] = fmt.Sprint(v)
		}
	}
	return p
}

// FromPayload rebuilds an *Error. No stack is attached: the failure site is
// on the other side of the boundary.
func FromPayload(p *Payload) *Error {
	if p == nil {
		return nil
	}

	e := &Error{Type: p.Type, Message: p.Message}
	if p.Cause != nil {
		e.Cause = &remoteCause{text: *p.Cause}
	}
	if len(p.Details) > 0 {
		e.Details = make(map[string]interface{}, len(p.Details))
		for k, v := range p.Details {
			e.Details[k] = v
		}
	}
	return e
}
