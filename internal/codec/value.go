package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/glimte/rabbiteer/internal/apperr"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Value is a typed AMQP field value. The set of implementations is closed;
// each one knows how to render itself as JSON and as an amqp091 field.
type Value interface {
	// JSON returns a value encoding/json can marshal
	JSON() any
	// AMQP returns the amqp091 representation of the value
	AMQP() any

	sealed()
}

type (
	Bool       bool
	Int        int64
	Uint       uint64
	Float      float32
	Double     float64
	LongString string
	Bytes      []byte
	Void       struct{}
	Timestamp  time.Time
	Array      []Value
	Table      map[string]Value
)

// Decimal is a fixed point number: Value / 10^Scale
type Decimal struct {
	Scale uint8
	Value int32
}

func (Bool) sealed()       {}
func (Int) sealed()        {}
func (Uint) sealed()       {}
func (Float) sealed()      {}
func (Double) sealed()     {}
func (LongString) sealed() {}
func (Bytes) sealed()      {}
func (Void) sealed()       {}
func (Timestamp) sealed()  {}
func (Decimal) sealed()    {}
func (Array) sealed()      {}
func (Table) sealed()      {}

func (v Bool) JSON() any       { return bool(v) }
func (v Int) JSON() any        { return int64(v) }
func (v Uint) JSON() any       { return uint64(v) }
func (v Float) JSON() any      { return finite(float64(v)) }
func (v Double) JSON() any     { return finite(float64(v)) }
func (v LongString) JSON() any { return string(v) }
func (v Bytes) JSON() any      { return base64.StdEncoding.EncodeToString(v) }
func (Void) JSON() any         { return nil }

// JSON renders the timestamp as seconds since the epoch
func (v Timestamp) JSON() any {
	secs := time.Time(v).Unix()
	if secs < 0 {
		return uint64(0)
	}
	return uint64(secs)
}

func (v Decimal) JSON() any {
	return finite(float64(v.Value) / math.Pow10(int(v.Scale)))
}

// finite maps NaN and infinities, which JSON cannot carry, to null
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func (v Array) JSON() any {
	out := make([]any, len(v))
	for i, e := range v {
		out[i] = e.JSON()
	}
	return out
}

func (v Table) JSON() any {
	out := make(map[string]any, len(v))
	for k, e := range v {
		out[k] = e.JSON()
	}
	return out
}

func (v Bool) AMQP() any       { return bool(v) }
func (v Int) AMQP() any        { return int64(v) }
func (v Float) AMQP() any      { return float32(v) }
func (v Double) AMQP() any     { return float64(v) }
func (v LongString) AMQP() any { return string(v) }
func (v Bytes) AMQP() any      { return []byte(v) }
func (Void) AMQP() any         { return nil }
func (v Timestamp) AMQP() any  { return time.Time(v) }
func (v Decimal) AMQP() any    { return amqp.Decimal{Scale: v.Scale, Value: v.Value} }

// AMQP 0-9-1 only carries unsigned octets; wider values go out as a signed
// long, or a double when they do not fit one.
func (v Uint) AMQP() any {
	switch {
	case v <= math.MaxUint8:
		return uint8(v)
	case v <= math.MaxInt64:
		return int64(v)
	default:
		return float64(v)
	}
}

func (v Array) AMQP() any {
	out := make([]interface{}, len(v))
	for i, e := range v {
		out[i] = e.AMQP()
	}
	return out
}

func (v Table) AMQP() any {
	return v.AMQPTable()
}

// AMQPTable converts the table into an amqp091 header table
func (v Table) AMQPTable() amqp.Table {
	out := make(amqp.Table, len(v))
	for k, e := range v {
		out[k] = e.AMQP()
	}
	return out
}

// JSONObject converts the table into a JSON object
func (v Table) JSONObject() map[string]any {
	return v.JSON().(map[string]any)
}

// FromAMQP converts a field value decoded by amqp091 into a Value
func FromAMQP(f any) (Value, error) {
	switch f := f.(type) {
	case nil:
		return Void{}, nil
	case bool:
		return Bool(f), nil
	case int8:
		return Int(f), nil
	case int16:
		return Int(f), nil
	case int32:
		return Int(f), nil
	case int64:
		return Int(f), nil
	case int:
		return Int(f), nil
	case uint8:
		return Uint(f), nil
	case uint16:
		return Uint(f), nil
	case uint32:
		return Uint(f), nil
	case uint64:
		return Uint(f), nil
	case float32:
		return Float(f), nil
	case float64:
		return Double(f), nil
	case string:
		return LongString(f), nil
	case []byte:
		return Bytes(f), nil
	case amqp.Decimal:
		return Decimal{Scale: f.Scale, Value: f.Value}, nil
	case time.Time:
		return Timestamp(f), nil
	case amqp.Table:
		table, err := FromTable(f)
		if err != nil {
			return nil, err
		}
		return table, nil
	case []interface{}:
		arr := make(Array, len(f))
		for i, e := range f {
			v, err := FromAMQP(e)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	}

	return nil, apperr.EncodingError("convert field",
		fmt.Errorf("%w: %T", apperr.ErrUnsupportedFieldType, f))
}

// FromTable converts an amqp091 header table. A nil table yields an empty one.
func FromTable(t amqp.Table) (Table, error) {
	out := make(Table, len(t))
	for k, f := range t {
		v, err := FromAMQP(f)
		if err != nil {
			return nil, fmt.Errorf("header %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
