package terrain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Формат файла тайла:
//
//	[0:4]   magic "WTIL"
//	[4:6]   версия формата
//	[6:8]   флаги (flagZstd - полезная нагрузка сжата)
//	[8:10]  X тайла
//	[10:12] Y тайла
//	[12:16] длина полезной нагрузки
//	[16:]   256 подчанков x 145 высот float32 (little endian)
const (
	tileMagic      = "WTIL"
	tileVersion    = 1
	headerSize     = 16
	flagZstd       = 1 << 0
	rawPayloadSize = ChunksPerTile * VerticesPerChunk * 4
)

// ErrCorruptTile возвращается при повреждённых или несовместимых данных тайла
var ErrCorruptTile = errors.New("повреждённые данные тайла")

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func initZstd() error {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(4*rawPayloadSize))
	})
	return zstdErr
}

// EncodeOptions параметры сериализации тайла
type EncodeOptions struct {
	Compress bool
}

// Encode сериализует тайл в байтовое представление
func Encode(tile *RawTile, opts EncodeOptions) ([]byte, error) {
	payload := make([]byte, rawPayloadSize)
	off := 0
	for i := range tile.Chunks {
		for _, h := range tile.Chunks[i].Heights {
			binary.LittleEndian.PutUint32(payload[off:], math.Float32bits(h))
			off += 4
		}
	}

	var flags uint16
	if opts.Compress {
		if err := initZstd(); err != nil {
			return nil, fmt.Errorf("инициализация zstd: %w", err)
		}
		payload = zstdEncoder.EncodeAll(payload, nil)
		flags |= flagZstd
	}

	out := make([]byte, headerSize, headerSize+len(payload))
	copy(out[0:4], tileMagic)
	binary.LittleEndian.PutUint16(out[4:], tileVersion)
	binary.LittleEndian.PutUint16(out[6:], flags)
	binary.LittleEndian.PutUint16(out[8:], uint16(tile.Coord.X))
	binary.LittleEndian.PutUint16(out[10:], uint16(tile.Coord.Y))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(payload)))
	return append(out, payload...), nil
}

// Decode разбирает байты тайла. onChunk (может быть nil) вызывается после
// разбора каждого подчанка - используется для учёта прогресса загрузки.
func Decode(data []byte, onChunk func()) (*RawTile, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: короткий заголовок (%d байт)", ErrCorruptTile, len(data))
	}
	if string(data[0:4]) != tileMagic {
		return nil, fmt.Errorf("%w: неверная сигнатура", ErrCorruptTile)
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != tileVersion {
		return nil, fmt.Errorf("%w: неподдерживаемая версия %d", ErrCorruptTile, v)
	}

	flags := binary.LittleEndian.Uint16(data[6:])
	coord := TileCoord{
		X: int(binary.LittleEndian.Uint16(data[8:])),
		Y: int(binary.LittleEndian.Uint16(data[10:])),
	}
	if !coord.Valid() {
		return nil, fmt.Errorf("%w: координаты %s вне сетки", ErrCorruptTile, coord)
	}

	size := int(binary.LittleEndian.Uint32(data[12:]))
	payload := data[headerSize:]
	if len(payload) != size {
		return nil, fmt.Errorf("%w: длина данных %d, ожидалось %d", ErrCorruptTile, len(payload), size)
	}

	if flags&flagZstd != 0 {
		if err := initZstd(); err != nil {
			return nil, fmt.Errorf("инициализация zstd: %w", err)
		}
		raw, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, rawPayloadSize))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptTile, err)
		}
		payload = raw
	}
	if len(payload) != rawPayloadSize {
		return nil, fmt.Errorf("%w: размер высот %d, ожидалось %d", ErrCorruptTile, len(payload), rawPayloadSize)
	}

	off := 0
	return buildRawTile(coord, func(sc *SubChunk) error {
		for v := range sc.Heights {
			h := math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
			if math.IsNaN(float64(h)) || math.IsInf(float64(h), 0) {
				return fmt.Errorf("%w: некорректная высота в подчанке (%d,%d)", ErrCorruptTile, sc.IndexX, sc.IndexY)
			}
			sc.Heights[v] = h
			off += 4
		}
		if onChunk != nil {
			onChunk()
		}
		return nil
	})
}
