package login1

import (
	"fmt"
	"math"

	"github.com/godbus/dbus/v5"
)

// CreateSessionSignature is the argument signature of
// org.freedesktop.login1.Manager.CreateSession.
const CreateSessionSignature = "uusssssussbssa(sv)"

const createSessionArgCount = 14

// Property is one (name, variant) pair of the trailing a(sv) list.
type Property struct {
	Name  string
	Value dbus.Variant
}

// NewProperty builds a Property from a configuration scalar. Plain ints are
// narrowed to int32 when they fit so the wire type does not depend on the
// platform's int size.
func NewProperty(name string, value any) (Property, error) {
	if name == "" {
		return Property{}, fmt.Errorf("%w: property without a name", ErrInvalidRequest)
	}
	switch v := value.(type) {
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return Property{Name: name, Value: dbus.MakeVariant(int32(v))}, nil
		}
		return Property{Name: name, Value: dbus.MakeVariant(int64(v))}, nil
	case string, bool, int32, int64, uint32, uint64, float64:
		return Property{Name: name, Value: dbus.MakeVariant(v)}, nil
	default:
		return Property{}, fmt.Errorf("%w: property %q has unsupported type %T", ErrInvalidRequest, name, value)
	}
}

// SessionRequest holds the CreateSession arguments by name. Field order
// here mirrors the wire order; Args is the only place that flattens it.
type SessionRequest struct {
	UID        uint32
	PID        uint32
	Service    string
	Type       string
	Class      string
	Desktop    string
	Seat       string
	VTNr       uint32
	TTY        string
	Display    string
	Remote     bool
	RemoteUser string
	RemoteHost string
	Properties []Property
}

// Validate rejects requests that would put a malformed type on the wire.
func (r SessionRequest) Validate() error {
	if r.Service == "" || r.Type == "" || r.Class == "" {
		return fmt.Errorf("%w: service, type and class are required", ErrInvalidRequest)
	}
	for i, p := range r.Properties {
		if p.Name == "" {
			return fmt.Errorf("%w: property %d has no name", ErrInvalidRequest, i)
		}
		if p.Value.Signature().String() == "" {
			return fmt.Errorf("%w: property %q has no type", ErrInvalidRequest, p.Name)
		}
	}
	return nil
}

// Args flattens the request into positional CreateSession arguments. The
// property list is always present, as an empty a(sv) when there is nothing
// to send.
func (r SessionRequest) Args() []any {
	props := r.Properties
	if props == nil {
		props = []Property{}
	}
	return []any{
		r.UID,
		r.PID,
		r.Service,
		r.Type,
		r.Class,
		r.Desktop,
		r.Seat,
		r.VTNr,
		r.TTY,
		r.Display,
		r.Remote,
		r.RemoteUser,
		r.RemoteHost,
		props,
	}
}

// DecodeSessionRequest is the inverse of Args. It accepts the property list
// either as []Property (in-process) or as the [][]any shape godbus produces
// when decoding a(sv) from the wire.
func DecodeSessionRequest(body []any) (SessionRequest, error) {
	var r SessionRequest
	if len(body) != createSessionArgCount {
		return r, fmt.Errorf("%w: %d arguments, want %d", ErrInvalidRequest, len(body), createSessionArgCount)
	}

	d := argDecoder{body: body}
	r.UID = d.uint32At(0)
	r.PID = d.uint32At(1)
	r.Service = d.stringAt(2)
	r.Type = d.stringAt(3)
	r.Class = d.stringAt(4)
	r.Desktop = d.stringAt(5)
	r.Seat = d.stringAt(6)
	r.VTNr = d.uint32At(7)
	r.TTY = d.stringAt(8)
	r.Display = d.stringAt(9)
	r.Remote = d.boolAt(10)
	r.RemoteUser = d.stringAt(11)
	r.RemoteHost = d.stringAt(12)
	if d.err != nil {
		return SessionRequest{}, d.err
	}

	props, err := decodeProperties(body[13])
	if err != nil {
		return SessionRequest{}, err
	}
	r.Properties = props
	return r, nil
}

func decodeProperties(v any) ([]Property, error) {
	switch list := v.(type) {
	case []Property:
		out := make([]Property, len(list))
		copy(out, list)
		return out, nil
	case [][]any:
		out := make([]Property, 0, len(list))
		for i, fields := range list {
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: property %d has %d fields", ErrInvalidRequest, i, len(fields))
			}
			name, ok := fields[0].(string)
			if !ok {
				return nil, fmt.Errorf("%w: property %d name is %T", ErrInvalidRequest, i, fields[0])
			}
			value, ok := fields[1].(dbus.Variant)
			if !ok {
				return nil, fmt.Errorf("%w: property %q value is %T", ErrInvalidRequest, name, fields[1])
			}
			out = append(out, Property{Name: name, Value: value})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: property list is %T, want a(sv)", ErrInvalidRequest, v)
	}
}

// argDecoder type-asserts positional arguments, keeping the first failure.
type argDecoder struct {
	body []any
	err  error
}

func (d *argDecoder) fail(i int, want string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: argument %d is %T, want %s", ErrInvalidRequest, i, d.body[i], want)
	}
}

func (d *argDecoder) uint32At(i int) uint32 {
	v, ok := d.body[i].(uint32)
	if !ok {
		d.fail(i, "uint32")
	}
	return v
}

func (d *argDecoder) stringAt(i int) string {
	v, ok := d.body[i].(string)
	if !ok {
		d.fail(i, "string")
	}
	return v
}

func (d *argDecoder) boolAt(i int) bool {
	v, ok := d.body[i].(bool)
	if !ok {
		d.fail(i, "bool")
	}
	return v
}
