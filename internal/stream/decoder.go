// internal/stream/decoder.go
package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/YaganovValera/quote-relay/internal/quote"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrEmptyFrame   = errors.New("empty frame")
	ErrBadBase64    = errors.New("bad base64 payload")
	ErrBadProtobuf  = errors.New("malformed protobuf payload")
	ErrBadJSON      = errors.New("malformed json frame")
	ErrUnknownFrame = errors.New("unrecognized frame")
	ErrMissingID    = errors.New("quote without id")
)

// DecodeError несёт причину для метрик и исходную ошибку.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(reason string, sentinel error, cause error) error {
	if cause == nil {
		return &DecodeError{Reason: reason, Err: sentinel}
	}
	return &DecodeError{Reason: reason, Err: fmt.Errorf("%w: %v", sentinel, cause)}
}

// reasonOf возвращает метку причины для счётчика ошибок.
func reasonOf(err error) string {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Reason
	}
	return "unknown"
}

// -----------------------------------------------------------------------------
// Frame formats
// -----------------------------------------------------------------------------

// envelope — JSON-обёртка стримера: {"type":"pricing","message":"<base64>"}.
// Кадр с полем id вместо message трактуется как готовая JSON-котировка.
type envelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// DecodeFrame превращает один кадр фида в Quote.
// Поддерживаются JSON-обёртка, «голый» base64 и JSON-котировка.
func DecodeFrame(frame []byte) (quote.Quote, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return quote.Quote{}, decodeErr("empty", ErrEmptyFrame, nil)
	}

	if frame[0] == '{' {
		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			return quote.Quote{}, decodeErr("json", ErrBadJSON, err)
		}
		switch {
		case env.Message != "":
			return decodeBase64Pricing([]byte(env.Message))
		case env.ID != "":
			var q quote.Quote
			if err := json.Unmarshal(frame, &q); err != nil {
				return quote.Quote{}, decodeErr("json", ErrBadJSON, err)
			}
			return withID(q)
		default:
			return quote.Quote{}, decodeErr("unknown", ErrUnknownFrame, fmt.Errorf("type %q", env.Type))
		}
	}

	return decodeBase64Pricing(frame)
}

func decodeBase64Pricing(b64 []byte) (quote.Quote, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(b64)))
	n, err := base64.StdEncoding.Decode(raw, b64)
	if err != nil {
		return quote.Quote{}, decodeErr("base64", ErrBadBase64, err)
	}
	q, err := decodePricingData(raw[:n])
	if err != nil {
		return quote.Quote{}, decodeErr("protobuf", ErrBadProtobuf, err)
	}
	return withID(q)
}

// withID нормализует id; котировка без символа не может стать ключом кэша.
func withID(q quote.Quote) (quote.Quote, error) {
	q.ID = quote.Normalize(q.ID)
	if q.ID == "" {
		return quote.Quote{}, decodeErr("missing_id", ErrMissingID, nil)
	}
	return q, nil
}

// -----------------------------------------------------------------------------
// PricingData (protobuf)
// -----------------------------------------------------------------------------

// decodePricingData разбирает сообщение PricingData стримера по номерам полей.
// Поля с неожиданным wire-типом и неизвестные номера пропускаются.
func decodePricingData(b []byte) (quote.Quote, error) {
	var q quote.Quote
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return q, protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return q, protowire.ParseError(m)
			}
			setString(&q, num, string(v))
			n = m
		case protowire.Fixed32Type:
			v, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return q, protowire.ParseError(m)
			}
			setFloat(&q, num, math.Float32frombits(v))
			n = m
		case protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return q, protowire.ParseError(m)
			}
			setDouble(&q, num, math.Float64frombits(v))
			n = m
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return q, protowire.ParseError(m)
			}
			setVarint(&q, num, v)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return q, protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return q, nil
}

func setString(q *quote.Quote, num protowire.Number, v string) {
	switch num {
	case 1:
		q.ID = v
	case 4:
		q.Currency = v
	case 5:
		q.Exchange = v
	case 13:
		q.ShortName = v
	case 18:
		q.UnderlyingSymbol = v
	case 30:
		q.FromCurrency = v
	case 31:
		q.LastMarket = v
	}
}

func setFloat(q *quote.Quote, num protowire.Number, v float32) {
	switch num {
	case 2:
		q.Price = v
	case 8:
		q.ChangePercent = v
	case 10:
		q.DayHigh = v
	case 11:
		q.DayLow = v
	case 12:
		q.Change = v
	case 15:
		q.OpenPrice = v
	case 16:
		q.PreviousClose = v
	case 17:
		q.StrikePrice = v
	case 23:
		q.Bid = v
	case 25:
		q.Ask = v
	}
}

func setDouble(q *quote.Quote, num protowire.Number, v float64) {
	switch num {
	case 32:
		q.CirculatingSupply = v
	case 33:
		q.MarketCap = v
	}
}

func setVarint(q *quote.Quote, num protowire.Number, v uint64) {
	// sint64-поля закодированы zigzag, enum-поля — обычным varint
	s := protowire.DecodeZigZag(v)
	switch num {
	case 3:
		q.Time = s
	case 6:
		q.QuoteType = enumName(quoteTypes, v)
	case 7:
		q.MarketHours = enumName(marketHours, v)
	case 9:
		q.DayVolume = s
	case 14:
		q.ExpireDate = s
	case 19:
		q.OpenInterest = s
	case 20:
		q.OptionsType = enumName(optionTypes, v)
	case 21:
		q.MiniOption = s
	case 22:
		q.LastSize = s
	case 24:
		q.BidSize = s
	case 26:
		q.AskSize = s
	case 27:
		q.PriceHint = s
	case 28:
		q.Vol24Hr = s
	case 29:
		q.VolAllCurrencies = s
	}
}

var quoteTypes = map[uint64]string{
	0: "NONE", 5: "ALTSYMBOL", 7: "HEARTBEAT", 8: "EQUITY", 9: "INDEX",
	11: "MUTUALFUND", 12: "MONEYMARKET", 13: "OPTION", 14: "CURRENCY",
	15: "WARRANT", 17: "BOND", 18: "FUTURE", 20: "ETF", 23: "COMMODITY",
	28: "ECNQUOTE", 41: "CRYPTOCURRENCY", 42: "INDICATOR", 1000: "INDUSTRY",
}

var marketHours = map[uint64]string{
	0: "PRE_MARKET", 1: "REGULAR_MARKET", 2: "POST_MARKET", 3: "EXTENDED_HOURS_MARKET",
}

var optionTypes = map[uint64]string{0: "CALL", 1: "PUT"}

func enumName(names map[uint64]string, v uint64) string {
	if s, ok := names[v]; ok {
		return s
	}
	return strconv.FormatUint(v, 10)
}
