// Package weights 가중치만 저장된 safetensors 아카이브 읽기/쓰기
//
// 파일 구조: 8바이트 little-endian 헤더 길이, JSON 헤더, 텐서 데이터
package weights

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

const (
	metadataKey   = "__metadata__"
	maxHeaderSize = 100 << 20

	DTypeF32 = "F32"
	DTypeF64 = "F64"
)

// ErrNotArchive safetensors 형식이 아님
var ErrNotArchive = errors.New("Not a safetensors weights archive")

// Entry 헤더에 기록된 텐서 정보
type Entry struct {
	Name        string   `json:"-"`
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Tensor float32로 변환된 가중치 텐서
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// Archive 메모리에 로드된 가중치 아카이브
type Archive struct {
	Metadata map[string]string

	tensors []Tensor
	byName  map[string]int
}

// ReadHeader 헤더만 읽어 데이터 오프셋 순서로 텐서 정보 반환
func ReadHeader(r io.Reader) ([]Entry, map[string]string, int64, error) {
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	if size < 2 || size > maxHeaderSize {
		return nil, nil, 0, fmt.Errorf("%w: header size %d", ErrNotArchive, size)
	}

	header := make([]byte, size)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	if header[0] != '{' {
		return nil, nil, 0, fmt.Errorf("%w: header is not a JSON object", ErrNotArchive)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(header, &raw); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}

	var (
		entries  []Entry
		metadata map[string]string
	)
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, 0, fmt.Errorf("Invalid metadata: %w", err)
			}
			continue
		}

		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, nil, 0, fmt.Errorf("Invalid tensor entry %q: %w", name, err)
		}
		e.Name = name
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DataOffsets[0] != entries[j].DataOffsets[0] {
			return entries[i].DataOffsets[0] < entries[j].DataOffsets[0]
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, metadata, int64(8 + size), nil
}

// New 이미 읽어 둔 텐서로 아카이브 구성, 순서는 tensors 그대로
func New(tensors []Tensor, metadata map[string]string) (*Archive, error) {
	a := &Archive{
		Metadata: metadata,
		tensors:  make([]Tensor, 0, len(tensors)),
		byName:   make(map[string]int, len(tensors)),
	}

	for _, t := range tensors {
		n := 1
		for _, d := range t.Shape {
			n *= d
		}
		if n != len(t.Data) {
			return nil, fmt.Errorf("Tensor %q: shape %v needs %d values, got %d", t.Name, t.Shape, n, len(t.Data))
		}
		if _, dup := a.byName[t.Name]; dup {
			return nil, fmt.Errorf("Duplicate tensor name %q", t.Name)
		}

		a.byName[t.Name] = len(a.tensors)
		a.tensors = append(a.tensors, t)
	}

	return a, nil
}

// Open 가중치 아카이브 로드
func Open(path string) (*Archive, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(b)
}

// Parse 메모리의 아카이브 파싱
func Parse(b []byte) (*Archive, error) {
	entries, metadata, dataStart, err := ReadHeader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	data := b[dataStart:]

	a := &Archive{
		Metadata: metadata,
		tensors:  make([]Tensor, 0, len(entries)),
		byName:   make(map[string]int, len(entries)),
	}

	for _, e := range entries {
		begin, end := e.DataOffsets[0], e.DataOffsets[1]
		if begin < 0 || end < begin || end > int64(len(data)) {
			return nil, fmt.Errorf("Tensor %q: data offsets [%d, %d] out of range (%d bytes)",
				e.Name, begin, end, len(data))
		}

		values, err := decode(e, data[begin:end])
		if err != nil {
			return nil, err
		}

		a.byName[e.Name] = len(a.tensors)
		a.tensors = append(a.tensors, Tensor{
			Name:  e.Name,
			Shape: e.Shape,
			Data:  values,
		})
	}

	return a, nil
}

func decode(e Entry, raw []byte) ([]float32, error) {
	n := 1
	for _, d := range e.Shape {
		n *= d
	}

	switch e.DType {
	case DTypeF32:
		if len(raw) != n*4 {
			return nil, fmt.Errorf("Tensor %q: %d bytes for shape %v", e.Name, len(raw), e.Shape)
		}
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return values, nil
	case DTypeF64:
		if len(raw) != n*8 {
			return nil, fmt.Errorf("Tensor %q: %d bytes for shape %v", e.Name, len(raw), e.Shape)
		}
		values := make([]float32, n)
		for i := range values {
			values[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
		}
		return values, nil
	default:
		return nil, fmt.Errorf("Tensor %q: unsupported dtype %s", e.Name, e.DType)
	}
}

// Tensor 이름으로 텐서 조회
func (a *Archive) Tensor(name string) (Tensor, bool) {
	idx, ok := a.byName[name]
	if !ok {
		return Tensor{}, false
	}

	return a.tensors[idx], true
}

// Tensors 파일에 저장된 순서의 텐서 목록
func (a *Archive) Tensors() []Tensor {
	return a.tensors
}

// Names 파일에 저장된 순서의 텐서 이름
func (a *Archive) Names() []string {
	names := make([]string, len(a.tensors))
	for i, t := range a.tensors {
		names[i] = t.Name
	}

	return names
}

// Write 텐서 목록을 F32 safetensors 형식으로 기록
func Write(w io.Writer, tensors []Tensor, metadata map[string]string) error {
	header := make(map[string]interface{}, len(tensors)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, t := range tensors {
		n := 1
		for _, d := range t.Shape {
			n *= d
		}
		if n != len(t.Data) {
			return fmt.Errorf("Tensor %q: %d values for shape %v", t.Name, len(t.Data), t.Shape)
		}

		size := int64(n * 4)
		header[t.Name] = Entry{
			DType:       DTypeF32,
			Shape:       t.Shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	hb, err := json.Marshal(header)
	if err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(hb))); err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, t := range tensors {
		for _, v := range t.Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}

	return nil
}
