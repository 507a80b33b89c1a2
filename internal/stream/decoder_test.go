// internal/stream/decoder_test.go
package stream

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// pricing собирает PricingData так же, как это делает стример.
type pricing struct {
	id          string
	price       float32
	time        int64
	exchange    string
	quoteType   uint64
	marketHours uint64
	dayVolume   int64
	marketCap   float64
}

func (p pricing) bytes() []byte {
	var b []byte
	if p.id != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, p.id)
	}
	b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(p.price))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(p.time))
	if p.exchange != "" {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, p.exchange)
	}
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, p.quoteType)
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, p.marketHours)
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(p.dayVolume))
	b = protowire.AppendTag(b, 33, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(p.marketCap))
	// поле из будущей версии протокола должно пропускаться
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")
	return b
}

func (p pricing) base64() string { return base64.StdEncoding.EncodeToString(p.bytes()) }

func (p pricing) envelope() []byte {
	return []byte(fmt.Sprintf(`{"type":"pricing","message":%q}`, p.base64()))
}

func TestDecodeFrame_Envelope(t *testing.T) {
	p := pricing{
		id: "AAPL", price: 189.25, time: 1718000000000, exchange: "NMS",
		quoteType: 8, marketHours: 1, dayVolume: 52000000, marketCap: 2.9e12,
	}
	q, err := DecodeFrame(p.envelope())
	require.NoError(t, err)

	assert.Equal(t, "AAPL", q.ID)
	assert.Equal(t, float32(189.25), q.Price)
	assert.Equal(t, int64(1718000000000), q.Time)
	assert.Equal(t, "NMS", q.Exchange)
	assert.Equal(t, "EQUITY", q.QuoteType)
	assert.Equal(t, "REGULAR_MARKET", q.MarketHours)
	assert.Equal(t, int64(52000000), q.DayVolume)
	assert.Equal(t, 2.9e12, q.MarketCap)
}

func TestDecodeFrame_RawBase64(t *testing.T) {
	q, err := DecodeFrame([]byte(pricing{id: "BTC-USD", price: 65000, time: 5, quoteType: 41}.base64()))
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", q.ID)
	assert.Equal(t, "CRYPTOCURRENCY", q.QuoteType)
}

func TestDecodeFrame_UnknownEnumKeepsNumber(t *testing.T) {
	q, err := DecodeFrame(pricing{id: "X", quoteType: 777}.envelope())
	require.NoError(t, err)
	assert.Equal(t, "777", q.QuoteType)
}

func TestDecodeFrame_NegativeSint(t *testing.T) {
	q, err := DecodeFrame(pricing{id: "X", time: -42}.envelope())
	require.NoError(t, err)
	assert.Equal(t, int64(-42), q.Time)
}

func TestDecodeFrame_PlainJSONQuote(t *testing.T) {
	q, err := DecodeFrame([]byte(`{"id":" msft","price":410.5,"time":99,"exchange":"NMS"}`))
	require.NoError(t, err)
	assert.Equal(t, "MSFT", q.ID)
	assert.Equal(t, float32(410.5), q.Price)
	assert.Equal(t, int64(99), q.Time)
}

func TestDecodeFrame_Malformed(t *testing.T) {
	truncated := pricing{id: "AAPL", price: 1}.bytes()
	truncated = truncated[:len(truncated)-3]

	cases := []struct {
		name     string
		frame    []byte
		sentinel error
		reason   string
	}{
		{"empty", []byte("   "), ErrEmptyFrame, "empty"},
		{"brokenJSON", []byte(`{"type":`), ErrBadJSON, "json"},
		{"unknownJSON", []byte(`{"type":"heartbeat"}`), ErrUnknownFrame, "unknown"},
		{"badBase64", []byte("!!!not-base64!!!"), ErrBadBase64, "base64"},
		{"badBase64InEnvelope", []byte(`{"message":"%%%"}`), ErrBadBase64, "base64"},
		{"truncatedProtobuf", []byte(base64.StdEncoding.EncodeToString(truncated)), ErrBadProtobuf, "protobuf"},
		{"missingID", pricing{price: 1, time: 1}.envelope(), ErrMissingID, "missing_id"},
		{"blankIDProtobuf", pricing{id: "  ", price: 2, time: 1}.envelope(), ErrMissingID, "missing_id"},
		{"blankIDRawBase64", []byte(pricing{id: "\t ", price: 2}.base64()), ErrMissingID, "missing_id"},
		{"blankIDJSON", []byte(`{"id":"   ","price":1}`), ErrMissingID, "missing_id"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := DecodeFrame(c.frame)
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.sentinel), "want %v, got %v", c.sentinel, err)
			assert.Equal(t, c.reason, reasonOf(err))
		})
	}
}

func TestReasonOfForeignError(t *testing.T) {
	assert.Equal(t, "unknown", reasonOf(errors.New("x")))
}
