package mesh

import (
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxPayloadBytes is the usable portion of a legacy BLE advertising PDU
// (spec §6.1): 31 bytes total minus framing overhead leaves ~27 bytes
// for the manufacturer-data payload this codec produces.
const MaxPayloadBytes = 27

// ManufacturerID is the fixed manufacturer identifier mesh frames are
// advertised under (spec §6.2).
const ManufacturerID = 0x8888

const (
	headerLen         = 6  // type + ttl + msgIdHash + senderHash
	broadcastBodyLen  = 12 // timestamp + lat + lon
	directedHeaderLen = 6  // targetHash + timestamp

	maxBroadcastText = 9
	maxDirectedText  = 17
)

// Encode assembles a Frame into its manufacturer-data byte sequence.
// Text is truncated (UTF-8-safely where possible) to fit both the
// per-shape field limit (§4.1: 9 bytes broadcast, 17 bytes directed)
// and the overall 27-byte advertising budget — the two are not always
// simultaneously satisfiable for directed frames (6 header + 6 body +
// 17 text = 29 > 27), so the 27-byte budget wins and directed text is
// clipped further when necessary. Truncation is lossy and silent, per
// spec §4.1.
func Encode(f Frame) ([]byte, error) {
	buf := make([]byte, 0, MaxPayloadBytes)
	buf = append(buf, byte(f.Type))
	buf = append(buf, f.TTL)
	buf = appendU16(buf, f.MsgIDHash)
	buf = appendU16(buf, uint16(f.SenderHash))

	if isBroadcastShape(f.Type) {
		buf = appendU32(buf, f.Timestamp)
		buf = appendF32(buf, f.Latitude)
		buf = appendF32(buf, f.Longitude)
		text := truncateText(f.Text, maxBroadcastText)
		buf = append(buf, text...)
	} else {
		buf = appendU16(buf, uint16(f.TargetHash))
		buf = appendU32(buf, f.Timestamp)
		budget := MaxPayloadBytes - headerLen - directedHeaderLen
		limit := maxDirectedText
		if budget < limit {
			limit = budget
		}
		text := truncateText(f.Text, limit)
		buf = append(buf, text...)
	}

	if len(buf) > MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	return buf, nil
}

// Decode parses a manufacturer-data payload into a Frame. It always
// attempts a best-effort decode and returns a non-nil error alongside a
// usable (if partial) Frame when the text is malformed UTF-8, per spec
// §4.1: "Decode always attempts to produce a best-effort frame plus a
// diagnostic record."
func Decode(data []byte) (Frame, error) {
	if len(data) < 12 {
		return Frame{}, &DecodeError{Reason: ErrTooShort, Length: len(data)}
	}

	f := Frame{
		Type:       FrameType(data[0]),
		TTL:        data[1],
		MsgIDHash:  binary.BigEndian.Uint16(data[2:4]),
		SenderHash: NodeHash(binary.BigEndian.Uint16(data[4:6])),
	}

	switch f.Type {
	case FrameAnnounce, FrameMessage, FrameSOS, FrameAck, FrameDirect, FrameFriendRequest:
	default:
		return f, &DecodeError{Reason: ErrUnknownType, Length: len(data)}
	}

	rest := data[headerLen:]

	if isBroadcastShape(f.Type) {
		if len(rest) < broadcastBodyLen {
			return f, &DecodeError{Reason: ErrTooShort, Length: len(data)}
		}
		f.Timestamp = binary.BigEndian.Uint32(rest[0:4])
		f.Latitude = readF32(rest[4:8])
		f.Longitude = readF32(rest[8:12])
		text, err := decodeText(rest[12:])
		f.Text = text
		return f, err
	}

	if len(rest) < directedHeaderLen {
		return f, &DecodeError{Reason: ErrTooShort, Length: len(data)}
	}
	f.TargetHash = NodeHash(binary.BigEndian.Uint16(rest[0:2]))
	f.Timestamp = binary.BigEndian.Uint32(rest[2:6])
	text, err := decodeText(rest[6:])
	f.Text = text
	return f, err
}

func decodeText(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	// Best-effort lossy decode: each run of invalid bytes becomes the
	// Unicode replacement character, and we still surface the diagnostic
	// (spec §4.1).
	return strings.ToValidUTF8(string(b), "�"), MalformedUTF8Error{}
}

// truncateText truncates s to at most max bytes without splitting a
// multi-byte UTF-8 rune, matching the "lossy and silent" rule while
// avoiding producing invalid UTF-8 on the wire when avoidable.
func truncateText(s string, max int) []byte {
	if max <= 0 {
		return nil
	}
	b := []byte(s)
	if len(b) <= max {
		return b
	}
	b = b[:max]
	for len(b) > 0 && !utf8.RuneStart(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	// Drop a final rune start byte if it turned out to begin a rune
	// whose continuation bytes were just cut off.
	if len(b) > 0 {
		if r, size := utf8.DecodeLastRune(b); r == utf8.RuneError && size <= 1 {
			b = b[:len(b)-1]
		}
	}
	return b
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendF32(buf []byte, v float32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], math.Float32bits(v))
	return append(buf, tmp[:]...)
}

func readF32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}
