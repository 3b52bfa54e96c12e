package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// writeUint64 / writeString / writeStringSlice write self-describing,
// length-prefixed fields into buf.
func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint64(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeStringSlice(buf *bytes.Buffer, ss []string) {
	writeUint64(buf, uint64(len(ss)))
	for _, s := range ss {
		writeString(buf, s)
	}
}

// valueTag mirrors value.Kind but is encoded independently so the WAL wire
// format does not silently change if value.Kind's iota ordering ever does.
type valueTag byte

const (
	tagNull valueTag = iota
	tagBool
	tagInt64
	tagFloat64
	tagString
	tagList
	tagMap
	tagNode
	tagEdge
)

func writeValue(buf *bytes.Buffer, v value.Value) error {
	switch v.Kind() {
	case value.KindNull:
		buf.WriteByte(byte(tagNull))
	case value.KindBool:
		buf.WriteByte(byte(tagBool))
		b, _ := v.AsBool()
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case value.KindInt64:
		buf.WriteByte(byte(tagInt64))
		i, _ := v.AsInt64()
		writeUint64(buf, uint64(i))
	case value.KindFloat64:
		buf.WriteByte(byte(tagFloat64))
		f, _ := v.AsFloat64()
		writeUint64(buf, math.Float64bits(f))
	case value.KindString:
		buf.WriteByte(byte(tagString))
		s, _ := v.AsString()
		writeString(buf, s)
	case value.KindList:
		buf.WriteByte(byte(tagList))
		items, _ := v.AsList()
		writeUint64(buf, uint64(len(items)))
		for _, item := range items {
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
	case value.KindMap:
		buf.WriteByte(byte(tagMap))
		m, _ := v.AsMap()
		writeUint64(buf, uint64(len(m)))
		for k, item := range m {
			writeString(buf, k)
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
	case value.KindNode:
		buf.WriteByte(byte(tagNode))
		id, _ := v.AsNode()
		writeUint64(buf, uint64(id))
	case value.KindEdge:
		buf.WriteByte(byte(tagEdge))
		id, _ := v.AsEdge()
		writeUint64(buf, uint64(id))
	default:
		return fmt.Errorf("wal: unknown value kind %v", v.Kind())
	}
	return nil
}

// byteReader is the minimal interface readValue/readRecord need; *bytes.Reader
// satisfies it directly so decode has no extra buffering of its own.
type byteReader interface {
	io.Reader
	io.ByteReader
}

func readUint64(r byteReader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readString(r byteReader) (string, error) {
	n, err := readUint64(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readStringSlice(r byteReader) ([]string, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func readValue(r byteReader) (value.Value, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return value.Null, err
	}
	switch valueTag(tagByte) {
	case tagNull:
		return value.Null, nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return value.Null, err
		}
		return value.Bool(b != 0), nil
	case tagInt64:
		u, err := readUint64(r)
		if err != nil {
			return value.Null, err
		}
		return value.Int64(int64(u)), nil
	case tagFloat64:
		u, err := readUint64(r)
		if err != nil {
			return value.Null, err
		}
		return value.Float64(math.Float64frombits(u)), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return value.Null, err
		}
		return value.String(s), nil
	case tagList:
		n, err := readUint64(r)
		if err != nil {
			return value.Null, err
		}
		items := make([]value.Value, n)
		for i := range items {
			items[i], err = readValue(r)
			if err != nil {
				return value.Null, err
			}
		}
		return value.List(items), nil
	case tagMap:
		n, err := readUint64(r)
		if err != nil {
			return value.Null, err
		}
		m := make(map[string]value.Value, n)
		for i := uint64(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return value.Null, err
			}
			v, err := readValue(r)
			if err != nil {
				return value.Null, err
			}
			m[k] = v
		}
		return value.Map(m), nil
	case tagNode:
		u, err := readUint64(r)
		if err != nil {
			return value.Null, err
		}
		return value.NodeRef(value.NodeId(u)), nil
	case tagEdge:
		u, err := readUint64(r)
		if err != nil {
			return value.Null, err
		}
		return value.EdgeRef(value.EdgeId(u)), nil
	default:
		return value.Null, fmt.Errorf("wal: unknown value tag %d", tagByte)
	}
}

// encodeRecord produces the self-describing binary payload for rec (the
// bytes that go between the length prefix and the checksum in the on-disk
// framing, spec.md §6.2).
func encodeRecord(rec Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(rec.Kind))

	switch rec.Kind {
	case KindCreateNode:
		writeUint64(buf, uint64(rec.NodeID))
		writeStringSlice(buf, rec.Labels)
		writeUint64(buf, uint64(rec.Epoch))
	case KindDeleteNode:
		writeUint64(buf, uint64(rec.NodeID))
	case KindCreateEdge:
		writeUint64(buf, uint64(rec.EdgeID))
		writeUint64(buf, uint64(rec.Src))
		writeUint64(buf, uint64(rec.Dst))
		writeString(buf, rec.Type)
		writeUint64(buf, uint64(rec.Epoch))
	case KindDeleteEdge:
		writeUint64(buf, uint64(rec.EdgeID))
	case KindSetNodeProperty:
		writeUint64(buf, uint64(rec.NodeID))
		writeString(buf, rec.Key)
		if err := writeValue(buf, rec.Value); err != nil {
			return nil, err
		}
	case KindSetEdgeProperty:
		writeUint64(buf, uint64(rec.EdgeID))
		writeString(buf, rec.Key)
		if err := writeValue(buf, rec.Value); err != nil {
			return nil, err
		}
	case KindRemoveNodeProperty:
		writeUint64(buf, uint64(rec.NodeID))
		writeString(buf, rec.Key)
	case KindRemoveEdgeProperty:
		writeUint64(buf, uint64(rec.EdgeID))
		writeString(buf, rec.Key)
	case KindAddLabel:
		writeUint64(buf, uint64(rec.NodeID))
		writeString(buf, rec.Label)
	case KindRemoveLabel:
		writeUint64(buf, uint64(rec.NodeID))
		writeString(buf, rec.Label)
	case KindTxCommit, KindTxAbort:
		writeUint64(buf, uint64(rec.TxID))
	case KindCheckpoint:
		writeUint64(buf, uint64(rec.TxID))
		writeUint64(buf, uint64(rec.Epoch))
	default:
		return nil, fmt.Errorf("wal: unknown record kind %d", rec.Kind)
	}
	return buf.Bytes(), nil
}

// decodeRecord parses a payload previously produced by encodeRecord.
func decodeRecord(payload []byte) (Record, error) {
	r := bytes.NewReader(payload)
	kindByte, err := r.ReadByte()
	if err != nil {
		return Record{}, err
	}
	kind := Kind(kindByte)
	rec := Record{Kind: kind}

	var u uint64
	switch kind {
	case KindCreateNode:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.NodeID = value.NodeId(u)
		if rec.Labels, err = readStringSlice(r); err != nil {
			return Record{}, err
		}
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.Epoch = value.EpochId(u)
	case KindDeleteNode:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.NodeID = value.NodeId(u)
	case KindCreateEdge:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.EdgeID = value.EdgeId(u)
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.Src = value.NodeId(u)
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.Dst = value.NodeId(u)
		if rec.Type, err = readString(r); err != nil {
			return Record{}, err
		}
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.Epoch = value.EpochId(u)
	case KindDeleteEdge:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.EdgeID = value.EdgeId(u)
	case KindSetNodeProperty:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.NodeID = value.NodeId(u)
		if rec.Key, err = readString(r); err != nil {
			return Record{}, err
		}
		if rec.Value, err = readValue(r); err != nil {
			return Record{}, err
		}
	case KindSetEdgeProperty:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.EdgeID = value.EdgeId(u)
		if rec.Key, err = readString(r); err != nil {
			return Record{}, err
		}
		if rec.Value, err = readValue(r); err != nil {
			return Record{}, err
		}
	case KindRemoveNodeProperty:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.NodeID = value.NodeId(u)
		if rec.Key, err = readString(r); err != nil {
			return Record{}, err
		}
	case KindRemoveEdgeProperty:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.EdgeID = value.EdgeId(u)
		if rec.Key, err = readString(r); err != nil {
			return Record{}, err
		}
	case KindAddLabel:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.NodeID = value.NodeId(u)
		if rec.Label, err = readString(r); err != nil {
			return Record{}, err
		}
	case KindRemoveLabel:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.NodeID = value.NodeId(u)
		if rec.Label, err = readString(r); err != nil {
			return Record{}, err
		}
	case KindTxCommit, KindTxAbort:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.TxID = value.TxId(u)
	case KindCheckpoint:
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.TxID = value.TxId(u)
		if u, err = readUint64(r); err != nil {
			return Record{}, err
		}
		rec.Epoch = value.EpochId(u)
	default:
		return Record{}, fmt.Errorf("wal: unknown record kind %d", kind)
	}
	return rec, nil
}

// EncodeRecords serializes records as a sequence of length-prefixed
// encodeRecord payloads, with no checksum framing of its own — callers
// that need integrity checking (a SnapshotStore backed by Badger, which
// already checksums its own value log) get it from the underlying store
// instead of paying for it twice.
func EncodeRecords(records []Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	writeUint64(buf, uint64(len(records)))
	for _, rec := range records {
		payload, err := encodeRecord(rec)
		if err != nil {
			return nil, err
		}
		writeUint64(buf, uint64(len(payload)))
		buf.Write(payload)
	}
	return buf.Bytes(), nil
}

// DecodeRecords parses a blob previously produced by EncodeRecords.
func DecodeRecords(data []byte) ([]Record, error) {
	r := bytes.NewReader(data)
	count, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, count)
	for i := uint64(0); i < count; i++ {
		size, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
