package semantic

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Flat index file layout, little-endian:
//
//	magic   [4]byte "NFLT"
//	version uint32
//	dim     uint32
//	count   uint32
//	rows    count*dim float32
var flatMagic = [4]byte{'N', 'F', 'L', 'T'}

const (
	flatVersion    = 1
	flatHeaderSize = 16
)

var errCorruptIndex = errors.New("corrupt index file")

func encodeFlat(dim int, vectors [][]float32) []byte {
	buf := make([]byte, flatHeaderSize, flatHeaderSize+len(vectors)*dim*4)
	copy(buf[0:4], flatMagic[:])
	binary.LittleEndian.PutUint32(buf[4:], flatVersion)
	binary.LittleEndian.PutUint32(buf[8:], uint32(dim))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(vectors)))
	for _, v := range vectors {
		buf = append(buf, encodeFloat32s(v)...)
	}
	return buf
}

func decodeFlat(b []byte) (int, [][]float32, error) {
	if len(b) < flatHeaderSize {
		return 0, nil, fmt.Errorf("%w: %d bytes is shorter than the header", errCorruptIndex, len(b))
	}
	if !bytes.Equal(b[0:4], flatMagic[:]) {
		return 0, nil, fmt.Errorf("%w: bad magic", errCorruptIndex)
	}
	if v := binary.LittleEndian.Uint32(b[4:]); v != flatVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", errCorruptIndex, v)
	}
	dim := int(binary.LittleEndian.Uint32(b[8:]))
	count := int(binary.LittleEndian.Uint32(b[12:]))

	// Header fields are untrusted: derive the row count from the body
	// by division so no product can wrap before the allocation.
	body := b[flatHeaderSize:]
	if dim == 0 {
		if count != 0 || len(body) != 0 {
			return 0, nil, fmt.Errorf("%w: zero dimension with %d rows", errCorruptIndex, count)
		}
		return 0, nil, nil
	}
	rowBytes := uint64(dim) * 4
	if uint64(len(body))%rowBytes != 0 || uint64(count) != uint64(len(body))/rowBytes {
		return 0, nil, fmt.Errorf("%w: body is %d bytes, header says %d rows of dimension %d", errCorruptIndex, len(body), count, dim)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		row := body[i*dim*4 : (i+1)*dim*4]
		v, err := decodeFloat32s(row)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: row %d: %v", errCorruptIndex, i, err)
		}
		vectors[i] = v
	}
	return dim, vectors, nil
}

func writeFlat(path string, dim int, vectors [][]float32) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(encodeFlat(dim, vectors)); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

// encodeFloat32s serializes a float32 slice as little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// squaredL2 is the distance reported by a flat L2 index.
func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}
