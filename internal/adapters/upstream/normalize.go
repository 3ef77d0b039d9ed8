package upstream

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var displayJSON = jsoniter.Config{EscapeHTML: false}.Froze()

var errTrailingData = errors.New("trailing data after JSON value")

// normalizeJSON re-serializes one JSON document token by token. Object
// members keep their order; numbers are written in their shortest
// round-trip form (1.0 -> 1, 1e2 -> 100) and string escapes are decoded
// except where JSON requires them.
func normalizeJSON(raw []byte) ([]byte, error) {
	iter := displayJSON.BorrowIterator(raw)
	defer displayJSON.ReturnIterator(iter)
	stream := displayJSON.BorrowStream(nil)
	defer displayJSON.ReturnStream(stream)

	copyValue(iter, stream)
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, iter.Error
	}
	if iter.Error == nil {
		if iter.WhatIsNext() != jsoniter.InvalidValue || !errors.Is(iter.Error, io.EOF) {
			return nil, errTrailingData
		}
	}
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func copyValue(iter *jsoniter.Iterator, stream *jsoniter.Stream) {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		stream.WriteObjectStart()
		first := true
		iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			if !first {
				stream.WriteMore()
			}
			first = false
			stream.WriteObjectField(key)
			copyValue(it, stream)
			return it.Error == nil
		})
		stream.WriteObjectEnd()
	case jsoniter.ArrayValue:
		stream.WriteArrayStart()
		first := true
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			if !first {
				stream.WriteMore()
			}
			first = false
			copyValue(it, stream)
			return it.Error == nil
		})
		stream.WriteArrayEnd()
	case jsoniter.StringValue:
		stream.WriteString(iter.ReadString())
	case jsoniter.NumberValue:
		n := iter.ReadNumber()
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			iter.ReportError("read number", err.Error())
			return
		}
		stream.WriteRaw(formatNumber(f))
	case jsoniter.BoolValue:
		stream.WriteBool(iter.ReadBool())
	case jsoniter.NilValue:
		iter.ReadNil()
		stream.WriteNil()
	default:
		iter.ReportError("read value", fmt.Sprintf("unexpected %v", iter.WhatIsNext()))
	}
}

// formatNumber renders f the way ECMAScript's Number#toString does:
// plain digits for decimal exponents up to 21, exponent notation beyond
// that or below 1e-6. Values that overflow float64 become null.
func formatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null"
	}
	if f == 0 {
		return "0"
	}
	sign := ""
	if f < 0 {
		sign, f = "-", -f
	}

	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.Replace(mant, ".", "", 1)
	e, _ := strconv.Atoi(exp)
	point := e + 1
	k := len(digits)

	switch {
	case k <= point && point <= 21:
		return sign + digits + strings.Repeat("0", point-k)
	case 0 < point && point <= 21:
		return sign + digits[:point] + "." + digits[point:]
	case -6 < point && point <= 0:
		return sign + "0." + strings.Repeat("0", -point) + digits
	}

	expSign := "+"
	if e < 0 {
		expSign, e = "-", -e
	}
	m := digits[:1]
	if k > 1 {
		m += "." + digits[1:]
	}
	return sign + m + "e" + expSign + strconv.Itoa(e)
}
