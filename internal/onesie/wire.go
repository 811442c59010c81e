// Package onesie implements the client side of the platform's internal
// binary playback-metadata protocol: building the encrypted request
// envelope and decoding the response embedded in the multipart stream.
package onesie

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The envelope records are externally defined by the platform; the field
// numbers below mirror that schema. Only fields this client reads or
// writes are handled, unknown fields are skipped on decode.

// httpHeader is one header of the proxied inner request.
type httpHeader struct {
	Name  string // field 1
	Value string // field 2
}

// innertubeRequest is the inner player request before sealing.
type innertubeRequest struct {
	URL                     string       // field 1
	Headers                 []httpHeader // field 2
	Body                    []byte       // field 3, JSON
	ProxiedByTrustedBandaid bool         // field 4
	SkipResponseEncryption  bool         // field 5
}

// encryptedRequest carries the sealed inner request plus the key blob the
// edge needs to unseal it.
type encryptedRequest struct {
	EncryptedClientKey []byte // field 1
	Ciphertext         []byte // field 2
	IV                 []byte // field 3
	HMAC               []byte // field 4
	EnableCompression  bool   // field 5
	SerializeAsJSON    bool   // field 7
}

// clientInfo identifies the client inside the streamer context.
type clientInfo struct {
	ClientName    int    // field 1, numeric client id
	ClientVersion string // field 2
}

// streamerContext travels alongside the encrypted request.
type streamerContext struct {
	Client  clientInfo // field 1
	PoToken []byte     // field 2
}

// envelope is the outer request POSTed to the edge. BufferedRanges and
// URLs are always empty for metadata-only requests but remain part of the
// record.
type envelope struct {
	URLs             []string         // field 1
	InnertubeRequest encryptedRequest // field 2
	StreamerContext  streamerContext  // field 3
	UstreamerConfig  []byte           // field 4
}

// header is the decoded ONESIE_HEADER part payload.
type header struct {
	Type         int           // field 1
	VideoID      string        // field 2
	CryptoParams *cryptoParams // field 3
}

// cryptoParams carries the response decryption material.
type cryptoParams struct {
	IV          []byte // field 1
	HMAC        []byte // field 2
	Compression int    // field 3
}

// innertubeResponse is the decoded inner response envelope.
type innertubeResponse struct {
	ProxyStatus int    // field 1
	HTTPStatus  int    // field 2
	Body        []byte // field 4
}

// Header subtypes and enum values of the external schema.
const (
	headerTypePlayerResponse = 0

	compressionNone   = 0
	compressionGzip   = 1
	compressionBrotli = 2

	proxyStatusOK = 1
)

func encodeHTTPHeader(h httpHeader) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, h.Name)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, h.Value)
	return b
}

func encodeInnertubeRequest(r innertubeRequest) []byte {
	var b []byte
	if r.URL != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, r.URL)
	}
	for _, h := range r.Headers {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeHTTPHeader(h))
	}
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Body)
	b = appendBool(b, 4, r.ProxiedByTrustedBandaid)
	b = appendBool(b, 5, r.SkipResponseEncryption)
	return b
}

func encodeEncryptedRequest(r encryptedRequest) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, r.EncryptedClientKey)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Ciphertext)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, r.IV)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, r.HMAC)
	b = appendBool(b, 5, r.EnableCompression)
	b = appendBool(b, 7, r.SerializeAsJSON)
	return b
}

func encodeStreamerContext(c streamerContext) []byte {
	var client []byte
	client = protowire.AppendTag(client, 1, protowire.VarintType)
	client = protowire.AppendVarint(client, uint64(c.Client.ClientName))
	client = protowire.AppendTag(client, 2, protowire.BytesType)
	client = protowire.AppendString(client, c.Client.ClientVersion)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, client)
	if len(c.PoToken) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, c.PoToken)
	}
	return b
}

func encodeEnvelope(e envelope) []byte {
	var b []byte
	for _, u := range e.URLs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, u)
	}
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeEncryptedRequest(e.InnertubeRequest))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeStreamerContext(e.StreamerContext))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, e.UstreamerConfig)
	return b
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

// decodeHeader parses an ONESIE_HEADER part payload.
func decodeHeader(data []byte) (header, error) {
	var h header
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte, varint uint64) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			h.Type = int(varint)
		case num == 2 && typ == protowire.BytesType:
			h.VideoID = string(value)
		case num == 3 && typ == protowire.BytesType:
			params, err := decodeCryptoParams(value)
			if err != nil {
				return err
			}
			h.CryptoParams = &params
		}
		return nil
	})
	return h, err
}

func decodeCryptoParams(data []byte) (cryptoParams, error) {
	var p cryptoParams
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte, varint uint64) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			p.IV = value
		case num == 2 && typ == protowire.BytesType:
			p.HMAC = value
		case num == 3 && typ == protowire.VarintType:
			p.Compression = int(varint)
		}
		return nil
	})
	return p, err
}

func decodeInnertubeResponse(data []byte) (innertubeResponse, error) {
	var r innertubeResponse
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, value []byte, varint uint64) error {
		switch {
		case num == 1 && typ == protowire.VarintType:
			r.ProxyStatus = int(varint)
		case num == 2 && typ == protowire.VarintType:
			r.HTTPStatus = int(varint)
		case num == 4 && typ == protowire.BytesType:
			r.Body = value
		}
		return nil
	})
	return r, err
}

// walkFields iterates a record's fields, invoking visit with either the
// bytes payload or the varint value depending on the wire type. Unknown
// fields are skipped.
func walkFields(data []byte, visit func(num protowire.Number, typ protowire.Type, value []byte, varint uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("malformed record: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			if err := visit(num, typ, nil, v); err != nil {
				return err
			}
			data = data[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			if err := visit(num, typ, v, 0); err != nil {
				return err
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}
