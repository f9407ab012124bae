// Package deeplink builds booking redirect URLs carrying a compact
// binary payload. The payload is a hand-rolled protobuf-style message:
// the field numbers, wire types and nesting below are a fixed external
// contract and must byte-match what the booking host expects.
package deeplink

import (
	"encoding/base64"
	"net/url"
)

const (
	wireVarint = 0
	wireBytes  = 2

	// Top-level message constants required by the booking host.
	searchModeField = 1
	searchModeValue = 28
	legCountField   = 2
	legCountValue   = 2
	legField        = 3
	trailerField    = 14
	trailerValue    = 1

	// Leg message fields.
	legDateField    = 2
	legOriginField  = 13
	legDestField    = 14

	// Airport message fields.
	airportKindField  = 1
	airportKindValue  = 1
	airportCodeField  = 2

	bookingHost = "https://www.google.com/travel/flights/search"

	// Static second payload parameter, constant for every search.
	tfuParam = "EgYIARABGAA"
)

// appendVarint appends v in base-128 varint form: 7 data bits per byte,
// continuation bit set on all but the last byte.
func appendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

func appendTag(b []byte, field, wire int) []byte {
	return appendVarint(b, uint64(field<<3|wire))
}

func appendVarintField(b []byte, field int, v uint64) []byte {
	b = appendTag(b, field, wireVarint)
	return appendVarint(b, v)
}

func appendBytesField(b []byte, field int, payload []byte) []byte {
	b = appendTag(b, field, wireBytes)
	b = appendVarint(b, uint64(len(payload)))
	return append(b, payload...)
}

func appendStringField(b []byte, field int, s string) []byte {
	return appendBytesField(b, field, []byte(s))
}

// airportMessage encodes one airport record.
func airportMessage(code string) []byte {
	var b []byte
	b = appendVarintField(b, airportKindField, airportKindValue)
	b = appendStringField(b, airportCodeField, code)
	return b
}

// legMessage encodes one flight-leg record: travel date plus origin and
// destination airport submessages.
func legMessage(date, origin, destination string) []byte {
	var b []byte
	b = appendStringField(b, legDateField, date)
	b = appendBytesField(b, legOriginField, airportMessage(origin))
	b = appendBytesField(b, legDestField, airportMessage(destination))
	return b
}

// payload encodes the top-level search record: mode and count constants,
// the outbound and return legs as a repeated field, and the fixed trailer.
func payload(origin, destination, outboundDate, returnDate string) []byte {
	var b []byte
	b = appendVarintField(b, searchModeField, searchModeValue)
	b = appendVarintField(b, legCountField, legCountValue)
	b = appendBytesField(b, legField, legMessage(outboundDate, origin, destination))
	b = appendBytesField(b, legField, legMessage(returnDate, destination, origin))
	b = appendVarintField(b, trailerField, trailerValue)
	return b
}

// localeParams maps a fare currency to the locale and region query
// parameters the booking host pairs with it.
type localeParams struct {
	Locale string
	Region string
}

var currencyLocales = map[string]localeParams{
	"BRL": {"pt-BR", "BR"},
	"USD": {"en", "US"},
	"EUR": {"pt-PT", "PT"},
	"GBP": {"en-GB", "GB"},
	"ARS": {"es-AR", "AR"},
	"CLP": {"es-CL", "CL"},
}

var defaultLocale = localeParams{"en", "US"}

// Encode builds the full booking URL for a round trip. The binary
// payload is base64url-encoded without padding.
func Encode(origin, destination, outboundDate, returnDate, currency string) string {
	tfs := base64.RawURLEncoding.EncodeToString(
		payload(origin, destination, outboundDate, returnDate),
	)

	loc, ok := currencyLocales[currency]
	if !ok {
		loc = defaultLocale
	}

	q := url.Values{}
	q.Set("tfs", tfs)
	q.Set("tfu", tfuParam)
	q.Set("curr", currency)
	q.Set("hl", loc.Locale)
	q.Set("gl", loc.Region)

	return bookingHost + "?" + q.Encode()
}
