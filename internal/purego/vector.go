package purego

import (
	"math"
	"unsafe"
)

// emptyString backs zero-length string assignments, the engine still wants a
// valid pointer
var emptyString = []byte{0}

// chunkWriter implements ChunkWriter over a duckdb_data_chunk
type chunkWriter struct {
	d        *DuckDB
	chunk    DataChunk
	types    []Type
	capacity int
	vectors  []*vectorWriter
}

func newChunkWriter(d *DuckDB, chunk DataChunk, types []Type) *chunkWriter {
	return &chunkWriter{
		d:        d,
		chunk:    chunk,
		types:    types,
		capacity: int(d.duckdbVectorSize()),
		vectors:  make([]*vectorWriter, len(types)),
	}
}

func (c *chunkWriter) Capacity() int {
	return c.capacity
}

func (c *chunkWriter) ColumnCount() int {
	return int(c.d.duckdbDataChunkGetColumnCount(c.chunk))
}

func (c *chunkWriter) Vector(col int) VectorWriter {
	if c.vectors[col] == nil {
		vec := c.d.duckdbDataChunkGetVector(c.chunk, uint64(col))
		c.vectors[col] = &vectorWriter{
			d:     c.d,
			vec:   vec,
			typ:   c.types[col],
			width: c.types[col].Width(),
			data:  c.d.duckdbVectorGetData(vec),
		}
	}
	return c.vectors[col]
}

// vectorWriter writes into the data buffer of a flat output vector
type vectorWriter struct {
	d        *DuckDB
	vec      Vector
	typ      Type
	width    int
	data     unsafe.Pointer
	validity unsafe.Pointer
}

func (v *vectorWriter) at(row int) unsafe.Pointer {
	return unsafe.Add(v.data, row*v.width)
}

func (v *vectorWriter) SetNull(row int) {
	if v.validity == nil {
		v.d.duckdbVectorEnsureValidityWritable(v.vec)
		v.validity = v.d.duckdbVectorGetValidity(v.vec)
	}
	v.d.duckdbValiditySetRowInvalid(v.validity, uint64(row))
}

func (v *vectorWriter) SetBool(row int, b bool) {
	*(*bool)(v.at(row)) = b
}

func (v *vectorWriter) SetInt(row int, x int64) {
	p := v.at(row)
	switch v.width {
	case 1:
		*(*int8)(p) = int8(x)
	case 2:
		*(*int16)(p) = int16(x)
	case 4:
		*(*int32)(p) = int32(x)
	case 8:
		*(*int64)(p) = x
	}
}

func (v *vectorWriter) SetUint(row int, x uint64) {
	p := v.at(row)
	switch v.width {
	case 1:
		*(*uint8)(p) = uint8(x)
	case 2:
		*(*uint16)(p) = uint16(x)
	case 4:
		*(*uint32)(p) = uint32(x)
	case 8:
		*(*uint64)(p) = x
	}
}

func (v *vectorWriter) SetFloat(row int, f float64) {
	if v.typ == TypeFloat {
		*(*uint32)(v.at(row)) = math.Float32bits(float32(f))
		return
	}
	*(*uint64)(v.at(row)) = math.Float64bits(f)
}

// SetBytes copies b into the vector; the engine keeps its own copy
func (v *vectorWriter) SetBytes(row int, b []byte) {
	if len(b) == 0 {
		v.d.duckdbVectorAssignStringElementLen(v.vec, uint64(row), unsafe.Pointer(&emptyString[0]), 0)
		return
	}
	v.d.duckdbVectorAssignStringElementLen(v.vec, uint64(row), unsafe.Pointer(&b[0]), uint64(len(b)))
}
