// Package payment models the confirmation payload sent by the payment gateway.
package payment

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Result is the gateway confirmation stored on a paid order.
type Result struct {
	ID           string
	Status       string
	UpdateTime   string
	EmailAddress string
	PayerID      string

	// Raw is the payload as received. When set it is what gets stored and
	// served back, including fields the gateway added beyond the ones above.
	Raw jx.Raw
}

// Decode reads a gateway payload of the form
//
//	{"id": "...", "status": "...", "update_time": "...",
//	 "payer": {"email_address": "...", "payer_id": "..."}}
//
// Unknown fields are not decoded but survive in Raw.
func Decode(d *jx.Decoder) (Result, error) {
	raw, err := d.Raw()
	if err != nil {
		return Result{}, errors.Wrap(err, "decode payment result")
	}
	if raw.Type() != jx.Object {
		return Result{}, errors.Errorf("decode payment result: expected object, got %s", raw.Type())
	}

	r := Result{Raw: append(jx.Raw(nil), raw...)}
	err = jx.DecodeBytes(r.Raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			return decodeString(d, &r.ID)
		case "status":
			return decodeString(d, &r.Status)
		case "update_time":
			return decodeString(d, &r.UpdateTime)
		case "payer":
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "email_address":
					return decodeString(d, &r.EmailAddress)
				case "payer_id":
					return decodeString(d, &r.PayerID)
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "decode payment result")
	}
	if r.ID == "" {
		return Result{}, errors.New("decode payment result: missing id")
	}
	return r, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(data []byte) (Result, error) {
	return Decode(jx.DecodeBytes(data))
}

// decodeString accepts a JSON string or null.
func decodeString(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

// Encode writes the received payload, or r in the gateway payload shape
// when r was built by hand.
func (r Result) Encode(e *jx.Encoder) {
	if len(r.Raw) > 0 {
		e.Raw(r.Raw)
		return
	}
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("status")
	e.Str(r.Status)
	e.FieldStart("update_time")
	e.Str(r.UpdateTime)
	e.FieldStart("payer")
	e.ObjStart()
	e.FieldStart("email_address")
	e.Str(r.EmailAddress)
	if r.PayerID != "" {
		e.FieldStart("payer_id")
		e.Str(r.PayerID)
	}
	e.ObjEnd()
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	r.Encode(&e)
	return e.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	v, err := DecodeBytes(data)
	if err != nil {
		return err
	}
	*r = v
	return nil
}
