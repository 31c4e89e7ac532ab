package wire

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func TestStreamHeaderSubgroupRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := StreamHeaderSubgroupMsg{TrackAlias: 9, GroupID: 2, SubgroupID: 0, Priority: 128}
	if err := WriteStreamHeaderSubgroup(&buf, h); err != nil {
		t.Fatalf("WriteStreamHeaderSubgroup: %v", err)
	}

	br := bufio.NewReader(&buf)
	typ, err := br.ReadByte()
	if err != nil {
		t.Fatalf("read stream type: %v", err)
	}
	if uint64(typ) != StreamHeaderSubgroup {
		t.Fatalf("stream type = %d, want %d", typ, StreamHeaderSubgroup)
	}

	got, err := ReadStreamHeaderSubgroup(br)
	if err != nil {
		t.Fatalf("ReadStreamHeaderSubgroup: %v", err)
	}
	if got.TrackAlias != h.TrackAlias || got.GroupID != h.GroupID || got.Priority != h.Priority {
		t.Errorf("got %+v, want %+v", got, h)
	}
}

func TestSubgroupObjectRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	o := SubgroupObject{ObjectID: 3, Status: ObjectStatusNormal, Payload: []byte("frame-data")}
	if err := WriteSubgroupObject(&buf, false, o, 0); err != nil {
		t.Fatalf("WriteSubgroupObject: %v", err)
	}
	got, err := ReadSubgroupObject(&buf, false, 0)
	if err != nil {
		t.Fatalf("ReadSubgroupObject: %v", err)
	}
	if got.ObjectID != o.ObjectID || !bytes.Equal(got.Payload, o.Payload) {
		t.Errorf("got %+v, want %+v", got, o)
	}
}

func TestSubgroupObjectEndOfGroup(t *testing.T) {
	var buf bytes.Buffer
	o := SubgroupObject{ObjectID: 9, Status: ObjectStatusEndOfGroup}
	if err := WriteSubgroupObject(&buf, false, o, 0); err != nil {
		t.Fatalf("WriteSubgroupObject: %v", err)
	}
	got, err := ReadSubgroupObject(&buf, false, 0)
	if err != nil {
		t.Fatalf("ReadSubgroupObject: %v", err)
	}
	if got.Status != ObjectStatusEndOfGroup || len(got.Payload) != 0 {
		t.Errorf("got %+v, want status-only end-of-group record", got)
	}
}

func TestSubgroupObjectWithExtensions(t *testing.T) {
	var buf bytes.Buffer
	o := SubgroupObject{ObjectID: 1, Status: ObjectStatusNormal, Extensions: []byte{0xaa, 0xbb}, Payload: []byte("x")}
	if err := WriteSubgroupObject(&buf, true, o, 0); err != nil {
		t.Fatalf("WriteSubgroupObject: %v", err)
	}
	got, err := ReadSubgroupObject(&buf, true, 0)
	if err != nil {
		t.Fatalf("ReadSubgroupObject: %v", err)
	}
	if !bytes.Equal(got.Extensions, o.Extensions) || !bytes.Equal(got.Payload, o.Payload) {
		t.Errorf("got %+v, want %+v", got, o)
	}
}

func TestSubgroupObjectDeltaAccumulation(t *testing.T) {
	var buf bytes.Buffer
	ids := []uint64{0, 1, 3, 4, 10}
	var prevWrite uint64
	for _, id := range ids {
		if err := WriteSubgroupObject(&buf, false, SubgroupObject{ObjectID: id, Payload: []byte{byte(id)}}, prevWrite); err != nil {
			t.Fatalf("WriteSubgroupObject(%d): %v", id, err)
		}
		prevWrite = id
	}

	var prevRead uint64
	for _, want := range ids {
		got, err := ReadSubgroupObject(&buf, false, prevRead)
		if err != nil {
			t.Fatalf("ReadSubgroupObject: %v", err)
		}
		if got.ObjectID != want {
			t.Errorf("ObjectID = %d, want %d (reconstructed from deltas)", got.ObjectID, want)
		}
		prevRead = got.ObjectID
	}
}

func TestSubgroupObjectTruncatedPayloadIsWrongSize(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSubgroupObject(&buf, false, SubgroupObject{ObjectID: 1, Payload: []byte("hello")}, 0); err != nil {
		t.Fatalf("WriteSubgroupObject: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	_, err := ReadSubgroupObject(truncated, false, 0)
	var wrongSize *WrongSizeError
	if !errors.As(err, &wrongSize) {
		t.Fatalf("err = %v, want *WrongSizeError", err)
	}
}

func TestDatagramRoundTrip(t *testing.T) {
	d := DatagramObject{TrackAlias: 5, GroupID: 1, ObjectID: 0, Priority: 64, Status: ObjectStatusNormal, Payload: []byte("keyframe")}
	data := EncodeDatagram(d)
	got, err := DecodeDatagram(data)
	if err != nil {
		t.Fatalf("DecodeDatagram: %v", err)
	}
	if got.TrackAlias != d.TrackAlias || got.GroupID != d.GroupID || !bytes.Equal(got.Payload, d.Payload) {
		t.Errorf("got %+v, want %+v", got, d)
	}
}

func TestDatagramStatusOnly(t *testing.T) {
	d := DatagramObject{TrackAlias: 1, GroupID: 2, ObjectID: 3, Status: ObjectStatusDoesNotExist}
	data := EncodeDatagram(d)
	got, err := DecodeDatagram(data)
	if err != nil {
		t.Fatalf("DecodeDatagram: %v", err)
	}
	if got.Status != ObjectStatusDoesNotExist {
		t.Errorf("status = %d, want %d", got.Status, ObjectStatusDoesNotExist)
	}
}
