// Package spill implements the external-memory primitives of spec.md
// §4.10 (component C12): a length-prefixed row file format, an external
// (run-based, k-way-merged) sort, and a hash-partitioned aggregation
// state. Operators that grow past the buffer manager's memory budget
// (Sort, HashAggregate, HashJoin build side) spill through these types
// instead of failing outright.
//
// Grounded on the WAL's length-prefixed, tag+payload value encoding
// (pkg/wal/codec.go) generalized from a fixed record schema to an
// arbitrary row of values, since spec.md asks for "no schema overhead"
// rather than a KV store.
package spill

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/lpgdb/lpgdb/pkg/value"
)

// Row is one materialized tuple of values, the unit spill files store.
type Row []value.Value

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

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint64(buf, uint64(len(s)))
	buf.WriteString(s)
}

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
		return fmt.Errorf("spill: unknown value kind %v", v.Kind())
	}
	return nil
}

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
		return value.Null, fmt.Errorf("spill: unknown value tag %d", tagByte)
	}
}

// encodeRow produces a self-describing payload for row (no schema is
// carried; the reader learns column count and types from the stream
// itself).
func encodeRow(row Row) ([]byte, error) {
	buf := &bytes.Buffer{}
	writeUint64(buf, uint64(len(row)))
	for _, v := range row {
		if err := writeValue(buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// decodeRow parses a payload previously produced by encodeRow.
func decodeRow(payload []byte) (Row, error) {
	r := bytes.NewReader(payload)
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	row := make(Row, n)
	for i := range row {
		row[i], err = readValue(r)
		if err != nil {
			return nil, err
		}
	}
	return row, nil
}
