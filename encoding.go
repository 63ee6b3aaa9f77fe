package pool

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeMsgpack appends whatever fn encodes to buf.
func encodeMsgpack(buf []byte, fn func(enc *msgpack.Encoder) error) []byte {
	bb := getBuffer()
	defer releaseBuffer(bb)
	enc := msgpack.GetEncoder()
	enc.Reset(bb)
	err := fn(enc)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode msgpack: %w", err))
	}
	return append(buf, bb.Bytes()...)
}

// decodeMsgpack runs fn over data. Errors come back as *DataError pointing
// at the offset where decoding stopped.
func decodeMsgpack(data []byte, what string, fn func(dec *msgpack.Decoder) error) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := fn(dec)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(data, len(data)-r.Len(), err, "failed to decode %s", what)
	}
	return nil
}

func appendTokenBytes(buf []byte, t Token) []byte {
	return encodeMsgpack(buf, func(enc *msgpack.Encoder) error {
		return t.EncodeMsgpack(enc)
	})
}

func appendValuesBytes(buf []byte, vals Values) []byte {
	return encodeMsgpack(buf, func(enc *msgpack.Encoder) error {
		return encodeValues(enc, vals)
	})
}

func decodeTokenBytes(data []byte) (Token, error) {
	var t Token
	err := decodeMsgpack(data, "token", t.DecodeMsgpack)
	return t, err
}

func decodeValuesBytes(data []byte) (Values, error) {
	var vals Values
	err := decodeMsgpack(data, "values", func(dec *msgpack.Decoder) (err error) {
		vals, err = decodeValues(dec)
		return
	})
	return vals, err
}

// encodeValues writes the persistable tokens of vals as an array.
func encodeValues(enc *msgpack.Encoder, vals Values) error {
	vals = persistableTokens(vals)
	if err := enc.EncodeArrayLen(len(vals)); err != nil {
		return err
	}
	for _, t := range vals {
		if err := t.EncodeMsgpack(enc); err != nil {
			return err
		}
	}
	return nil
}

func decodeValues(dec *msgpack.Decoder) (Values, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil || n <= 0 {
		return Values{}, err
	}
	vals := make(Values, n)
	for i := range vals {
		if err := vals[i].DecodeMsgpack(dec); err != nil {
			return nil, err
		}
	}
	return vals, nil
}
