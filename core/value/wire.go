package value

import (
	"encoding/json"
	"fmt"
)

// wireEnvelope is the serialized form of a FieldValue: a fixed two-key
// record with an explicit kind discriminant. The engine parses this shape
// byte-for-byte; field names must not change.
type wireEnvelope struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"type": <kind>, "value": <payload>}.
// Byte payloads encode as an array of integers, not a base64 string.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindText, KindFacet, KindJSON:
		payload = v.str
	case KindU64:
		payload = v.u64
	case KindI64, KindDate:
		payload = v.i64
	case KindF64:
		payload = v.f64
	case KindBool:
		payload = v.b
	case KindBytes:
		nums := make([]uint16, len(v.raw))
		for i, b := range v.raw {
			nums[i] = uint16(b)
		}
		payload = nums
	default:
		return nil, fmt.Errorf("cannot serialize field value with no kind")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{Type: v.kind, Value: raw})
}

// UnmarshalJSON decodes the {"type", "value"} envelope back into a
// FieldValue, rejecting unknown kinds and malformed payloads.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	switch env.Type {
	case KindText, KindFacet, KindJSON:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return fmt.Errorf("%s value: %w", env.Type, err)
		}
		*v = FieldValue{kind: env.Type, str: s}
	case KindU64:
		var n uint64
		if err := json.Unmarshal(env.Value, &n); err != nil {
			return fmt.Errorf("u64 value: %w", err)
		}
		*v = U64(n)
	case KindI64, KindDate:
		var n int64
		if err := json.Unmarshal(env.Value, &n); err != nil {
			return fmt.Errorf("%s value: %w", env.Type, err)
		}
		*v = FieldValue{kind: env.Type, i64: n}
	case KindF64:
		var f float64
		if err := json.Unmarshal(env.Value, &f); err != nil {
			return fmt.Errorf("f64 value: %w", err)
		}
		*v = F64(f)
	case KindBool:
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return fmt.Errorf("bool value: %w", err)
		}
		*v = Bool(b)
	case KindBytes:
		var nums []uint16
		if err := json.Unmarshal(env.Value, &nums); err != nil {
			return fmt.Errorf("bytes value: %w", err)
		}
		raw := make([]byte, len(nums))
		for i, n := range nums {
			if n > 0xff {
				return fmt.Errorf("bytes value: element %d out of range: %d", i, n)
			}
			raw[i] = byte(n)
		}
		*v = FieldValue{kind: KindBytes, raw: raw}
	default:
		return fmt.Errorf("unknown field value kind %q", env.Type)
	}
	return nil
}
