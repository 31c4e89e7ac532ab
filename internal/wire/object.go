package wire

import (
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Object status codes, used in place of a payload for end-of-stream
// markers and explicit gaps.
const (
	ObjectStatusNormal        uint64 = 0x00
	ObjectStatusDoesNotExist  uint64 = 0x01
	ObjectStatusEndOfGroup    uint64 = 0x03
	ObjectStatusEndOfTrack    uint64 = 0x04
)

// StreamHeaderSubgroupMsg opens a unidirectional media stream carrying one
// subgroup's objects.
type StreamHeaderSubgroupMsg struct {
	TrackAlias   uint64
	GroupID      uint64
	SubgroupID   uint64
	Priority     byte
	HasExtension bool
}

// SubgroupObject is one object on a subgroup stream.
type SubgroupObject struct {
	ObjectID   uint64
	Status     uint64
	Extensions []byte
	Payload    []byte
}

// DatagramObject is a single self-contained object sent outside any
// stream, used for latency-sensitive tracks that tolerate loss.
type DatagramObject struct {
	TrackAlias uint64
	GroupID    uint64
	ObjectID   uint64
	Priority   byte
	Status     uint64
	Payload    []byte
}

// WriteStreamHeaderSubgroup writes the fixed preamble of a subgroup
// stream, starting with the stream type varint (StreamHeaderSubgroup)
// itself. It must be the first thing written on a newly opened
// unidirectional stream.
func WriteStreamHeaderSubgroup(w io.Writer, h StreamHeaderSubgroupMsg) error {
	buf := quicvarint.Append(nil, StreamHeaderSubgroup)
	buf = quicvarint.Append(buf, h.TrackAlias)
	buf = quicvarint.Append(buf, h.GroupID)
	buf = quicvarint.Append(buf, h.SubgroupID)
	buf = append(buf, h.Priority)
	_, err := w.Write(buf)
	return err
}

// ReadStreamHeaderSubgroup reads a subgroup stream's preamble, assuming
// the stream-type varint has already been consumed by the caller to
// decide which header variant to parse.
func ReadStreamHeaderSubgroup(r io.ByteReader) (StreamHeaderSubgroupMsg, error) {
	var h StreamHeaderSubgroupMsg
	var err error
	if h.TrackAlias, err = quicvarint.Read(r); err != nil {
		return h, &ParseError{"STREAM_HEADER_SUBGROUP", "track_alias", err}
	}
	if h.GroupID, err = quicvarint.Read(r); err != nil {
		return h, &ParseError{"STREAM_HEADER_SUBGROUP", "group_id", err}
	}
	if h.SubgroupID, err = quicvarint.Read(r); err != nil {
		return h, &ParseError{"STREAM_HEADER_SUBGROUP", "subgroup_id", err}
	}
	priority, err := r.ReadByte()
	if err != nil {
		return h, &ParseError{"STREAM_HEADER_SUBGROUP", "priority", err}
	}
	h.Priority = priority
	return h, nil
}

// WriteSubgroupObject writes one object record on an already-opened
// subgroup stream. The wire field is object_id_delta, not the absolute
// object_id: prevObjectID is the running sum of every delta written so
// far on this stream (0 for the first object of a new stream), and the
// caller must carry o.ObjectID forward as prevObjectID for the next call.
func WriteSubgroupObject(w io.Writer, withExt bool, o SubgroupObject, prevObjectID uint64) error {
	buf := quicvarint.Append(nil, o.ObjectID-prevObjectID)
	if withExt {
		buf = quicvarint.Append(buf, uint64(len(o.Extensions)))
		buf = append(buf, o.Extensions...)
	}
	if o.Status != ObjectStatusNormal {
		buf = quicvarint.Append(buf, 0)
		buf = quicvarint.Append(buf, o.Status)
	} else {
		buf = quicvarint.Append(buf, uint64(len(o.Payload)))
		buf = append(buf, o.Payload...)
	}
	_, err := w.Write(buf)
	return err
}

// byteReaderAdapter lets ReadSubgroupObject work against a plain
// io.Reader by buffering one byte at a time when the underlying reader
// isn't already an io.ByteReader (quic-go streams are).
type byteReaderAdapter struct{ io.Reader }

func (b byteReaderAdapter) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(b.Reader, buf[:])
	return buf[0], err
}

// asByteReader adapts r to io.ByteReader if it doesn't already implement it.
func asByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return byteReaderAdapter{r}
}

// ReadSubgroupObject reads one object record from a subgroup stream.
// prevObjectID is the running sum of every delta read so far on this
// stream (0 for the first object of a new stream); the returned
// o.ObjectID is prevObjectID plus the delta just read, and the caller
// must carry it forward as prevObjectID for the next call.
func ReadSubgroupObject(r io.Reader, withExt bool, prevObjectID uint64) (SubgroupObject, error) {
	br := asByteReader(r)
	var o SubgroupObject
	var err error
	var delta uint64
	if delta, err = quicvarint.Read(br); err != nil {
		if err == io.EOF {
			return o, io.EOF
		}
		return o, &ParseError{"SUBGROUP_OBJECT", "object_id_delta", err}
	}
	o.ObjectID = prevObjectID + delta
	if withExt {
		extLen, err := quicvarint.Read(br)
		if err != nil {
			return o, &ParseError{"SUBGROUP_OBJECT", "extension_len", err}
		}
		if extLen > 0 {
			ext := make([]byte, extLen)
			if _, err := io.ReadFull(r, ext); err != nil {
				return o, &ParseError{"SUBGROUP_OBJECT", "extensions", err}
			}
			o.Extensions = ext
		}
	}
	payloadLen, err := quicvarint.Read(br)
	if err != nil {
		return o, &ParseError{"SUBGROUP_OBJECT", "payload_len", err}
	}
	if payloadLen == 0 {
		status, err := quicvarint.Read(br)
		if err != nil {
			return o, &ParseError{"SUBGROUP_OBJECT", "object_status", err}
		}
		o.Status = status
		return o, nil
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return o, &WrongSizeError{"SUBGROUP_OBJECT", "payload", err}
	}
	o.Payload = payload
	o.Status = ObjectStatusNormal
	return o, nil
}

// EncodeDatagram serializes a single self-contained datagram object.
func EncodeDatagram(d DatagramObject) []byte {
	buf := quicvarint.Append(nil, d.TrackAlias)
	buf = quicvarint.Append(buf, d.GroupID)
	buf = quicvarint.Append(buf, d.ObjectID)
	buf = append(buf, d.Priority)
	if d.Status != ObjectStatusNormal {
		buf = quicvarint.Append(buf, 0)
		buf = quicvarint.Append(buf, d.Status)
	} else {
		buf = quicvarint.Append(buf, uint64(len(d.Payload)))
		buf = append(buf, d.Payload...)
	}
	return buf
}

// DecodeDatagram parses a single datagram payload in full; datagrams are
// never split across packets, so it operates on a fully-read byte slice
// rather than a reader.
func DecodeDatagram(data []byte) (DatagramObject, error) {
	r := &byteReader{data: data}
	var d DatagramObject
	var err error
	if d.TrackAlias, err = r.varint(); err != nil {
		return d, &ParseError{"DATAGRAM", "track_alias", err}
	}
	if d.GroupID, err = r.varint(); err != nil {
		return d, &ParseError{"DATAGRAM", "group_id", err}
	}
	if d.ObjectID, err = r.varint(); err != nil {
		return d, &ParseError{"DATAGRAM", "object_id", err}
	}
	if d.Priority, err = r.byte(); err != nil {
		return d, &ParseError{"DATAGRAM", "priority", err}
	}
	payloadLen, err := r.varint()
	if err != nil {
		return d, &ParseError{"DATAGRAM", "payload_len", err}
	}
	if payloadLen == 0 {
		status, err := r.varint()
		if err != nil {
			return d, &ParseError{"DATAGRAM", "object_status", err}
		}
		d.Status = status
		return d, nil
	}
	if r.pos+int(payloadLen) > len(data) {
		return d, &ParseError{"DATAGRAM", "payload", fmt.Errorf("truncated")}
	}
	d.Payload = data[r.pos : r.pos+int(payloadLen)]
	d.Status = ObjectStatusNormal
	return d, nil
}
