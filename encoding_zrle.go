// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ZRLEDecoder handles the ZRLE encoding defined in RFC 6143 Section 7.7.6.
// Each rectangle carries a u32 length followed by zlib-compressed tile data.
// All rectangles of a connection share one zlib stream, so the decompressor
// dictionary must persist for the session lifetime; the stream state lives on
// the Session, not the decoder.
type ZRLEDecoder struct{}

// zrleTileSize is the fixed tile grid dimension for ZRLE.
const zrleTileSize = 64

// ZRLE subencoding ranges from RFC 6143.
const (
	zrleSubRaw        = 0
	zrleSubSolid      = 1
	zrleSubPlainRLE   = 128
	zrleSubPaletteRLE = 130
)

// zrleStream is the per-session zlib decompression state. Compressed bytes
// from successive rectangles are appended to pending and the inflater reads
// across rectangle boundaries, preserving the shared dictionary.
type zrleStream struct {
	pending bytes.Buffer
	inflate io.ReadCloser
}

// feed appends one rectangle's compressed payload and returns a reader that
// yields the decompressed byte stream.
func (z *zrleStream) feed(data []byte) (io.Reader, error) {
	z.pending.Write(data)
	if z.inflate == nil {
		zr, err := zlib.NewReader(&z.pending)
		if err != nil {
			return nil, decodeError("zrleStream.feed", EncZRLE,
				"failed to initialize zlib stream", err)
		}
		z.inflate = zr
	}
	return z.inflate, nil
}

// reset discards the stream state. Called when the server ends the session;
// a fresh connection always starts a fresh stream.
func (z *zrleStream) reset() {
	if z.inflate != nil {
		_ = z.inflate.Close()
		z.inflate = nil
	}
	z.pending.Reset()
}

// Type returns the encoding type identifier for ZRLE encoding.
func (*ZRLEDecoder) Type() int32 {
	return EncZRLE
}

// Decode reads the compressed payload, feeds the shared zlib stream and
// applies every 64x64 tile of the rectangle.
func (d *ZRLEDecoder) Decode(s *Session, rect *Rectangle, r io.Reader) error {
	length, err := readUint32(r)
	if err != nil {
		return decodeError("ZRLEDecoder.Decode", EncZRLE,
			"failed to read compressed data length", err)
	}

	if length > MaxZRLECompressedLength {
		return decodeError("ZRLEDecoder.Decode", EncZRLE,
			fmt.Sprintf("compressed data length %d exceeds maximum %d",
				length, MaxZRLECompressedLength), nil)
	}

	compressed := make([]byte, length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return decodeError("ZRLEDecoder.Decode", EncZRLE,
			fmt.Sprintf("failed to read %d compressed bytes", length), err)
	}

	zr, err := s.zrle.feed(compressed)
	if err != nil {
		return err
	}

	format := s.fb.Format()
	bpp := format.BytesPerPixel()
	cpLen := zrleCPixelLen(&format)

	for tileY := uint16(0); tileY < rect.Height; tileY += zrleTileSize {
		tileH := rect.Height - tileY
		if tileH > zrleTileSize {
			tileH = zrleTileSize
		}

		for tileX := uint16(0); tileX < rect.Width; tileX += zrleTileSize {
			tileW := rect.Width - tileX
			if tileW > zrleTileSize {
				tileW = zrleTileSize
			}

			tile, err := d.decodeTile(zr, &format, bpp, cpLen, int(tileW), int(tileH))
			if err != nil {
				return err
			}
			if err := s.fb.ApplyRaw(rect.X+tileX, rect.Y+tileY, tileW, tileH, tile); err != nil {
				return err
			}
		}
	}

	s.metrics.RectangleDecoded(EncZRLE, 4+int(length))
	return nil
}

// decodeTile reads one tile from the decompressed stream and returns it as
// raw pixels in the session pixel format.
func (d *ZRLEDecoder) decodeTile(zr io.Reader, format *PixelFormat, bpp, cpLen, tileW, tileH int) ([]byte, error) {
	sub, err := readUint8(zr)
	if err != nil {
		return nil, decodeError("ZRLEDecoder.decodeTile", EncZRLE,
			"failed to read tile subencoding", err)
	}

	tile := make([]byte, tileW*tileH*bpp)
	pixel := make([]byte, bpp)

	switch {
	case sub == zrleSubRaw:
		for i := 0; i < tileW*tileH; i++ {
			if err := readCPixel(zr, format, cpLen, tile[i*bpp:(i+1)*bpp]); err != nil {
				return nil, err
			}
		}

	case sub == zrleSubSolid:
		if err := readCPixel(zr, format, cpLen, pixel); err != nil {
			return nil, err
		}
		for i := 0; i < tileW*tileH; i++ {
			copy(tile[i*bpp:], pixel)
		}

	case sub >= 2 && sub <= 16:
		palette, err := readZRLEPalette(zr, format, cpLen, bpp, int(sub))
		if err != nil {
			return nil, err
		}
		if err := unpackPalettedTile(zr, tile, palette, bpp, tileW, tileH, int(sub)); err != nil {
			return nil, err
		}

	case sub == zrleSubPlainRLE:
		for i := 0; i < tileW*tileH; {
			if err := readCPixel(zr, format, cpLen, pixel); err != nil {
				return nil, err
			}
			run, err := readZRLERunLength(zr)
			if err != nil {
				return nil, err
			}
			if i+run > tileW*tileH {
				return nil, decodeError("ZRLEDecoder.decodeTile", EncZRLE,
					"run length overflows tile", nil)
			}
			for j := 0; j < run; j++ {
				copy(tile[(i+j)*bpp:], pixel)
			}
			i += run
		}

	case sub >= zrleSubPaletteRLE:
		palette, err := readZRLEPalette(zr, format, cpLen, bpp, int(sub)-128)
		if err != nil {
			return nil, err
		}
		for i := 0; i < tileW*tileH; {
			idx, err := readUint8(zr)
			if err != nil {
				return nil, decodeError("ZRLEDecoder.decodeTile", EncZRLE,
					"failed to read palette index", err)
			}
			run := 1
			if idx&0x80 != 0 {
				idx &= 0x7f
				run, err = readZRLERunLength(zr)
				if err != nil {
					return nil, err
				}
			}
			if int(idx) >= len(palette)/bpp {
				return nil, decodeError("ZRLEDecoder.decodeTile", EncZRLE,
					fmt.Sprintf("palette index %d out of range", idx), nil)
			}
			if i+run > tileW*tileH {
				return nil, decodeError("ZRLEDecoder.decodeTile", EncZRLE,
					"run length overflows tile", nil)
			}
			entry := palette[int(idx)*bpp : (int(idx)+1)*bpp]
			for j := 0; j < run; j++ {
				copy(tile[(i+j)*bpp:], entry)
			}
			i += run
		}

	default:
		return nil, decodeError("ZRLEDecoder.decodeTile", EncZRLE,
			fmt.Sprintf("invalid tile subencoding %d", sub), nil)
	}

	return tile, nil
}

// readZRLEPalette reads size palette entries as native-format pixels packed
// back to back.
func readZRLEPalette(zr io.Reader, format *PixelFormat, cpLen, bpp, size int) ([]byte, error) {
	palette := make([]byte, size*bpp)
	for i := 0; i < size; i++ {
		if err := readCPixel(zr, format, cpLen, palette[i*bpp:(i+1)*bpp]); err != nil {
			return nil, err
		}
	}
	return palette, nil
}

// unpackPalettedTile expands a packed-palette tile. Pixels are packed using
// the smallest field that indexes the palette, and each row starts on a byte
// boundary.
func unpackPalettedTile(zr io.Reader, tile, palette []byte, bpp, tileW, tileH, paletteSize int) error {
	var bits int
	switch {
	case paletteSize <= 2:
		bits = 1
	case paletteSize <= 4:
		bits = 2
	default:
		bits = 4
	}

	rowBytes := (tileW*bits + 7) / 8
	row := make([]byte, rowBytes)
	mask := byte(1<<bits - 1)

	for y := 0; y < tileH; y++ {
		if _, err := io.ReadFull(zr, row); err != nil {
			return decodeError("unpackPalettedTile", EncZRLE,
				"failed to read packed palette row", err)
		}
		for x := 0; x < tileW; x++ {
			shift := 8 - bits - (x*bits)%8
			idx := (row[(x*bits)/8] >> shift) & mask
			if int(idx) >= paletteSize {
				return decodeError("unpackPalettedTile", EncZRLE,
					fmt.Sprintf("palette index %d out of range", idx), nil)
			}
			copy(tile[(y*tileW+x)*bpp:], palette[int(idx)*bpp:(int(idx)+1)*bpp])
		}
	}
	return nil
}

// readZRLERunLength reads an RLE run length: a sequence of 255 bytes plus a
// terminator below 255, summed, plus one.
func readZRLERunLength(zr io.Reader) (int, error) {
	run := 1
	for {
		b, err := readUint8(zr)
		if err != nil {
			return 0, decodeError("readZRLERunLength", EncZRLE,
				"failed to read run length byte", err)
		}
		run += int(b)
		if b != 255 {
			return run, nil
		}
	}
}

// zrleCPixelLen returns the compressed-pixel width for the format. True
// colour 32 bpp formats whose channels fit in 24 bits are sent as 3 bytes.
func zrleCPixelLen(pf *PixelFormat) int {
	if pf.TrueColor && pf.BPP == 32 && pf.Depth <= 24 &&
		fitsInLow24(pf.RedMax, pf.RedShift) &&
		fitsInLow24(pf.GreenMax, pf.GreenShift) &&
		fitsInLow24(pf.BlueMax, pf.BlueShift) {
		return 3
	}
	return pf.BytesPerPixel()
}

func fitsInLow24(max uint16, shift uint8) bool {
	return uint32(max)<<shift <= 0xffffff
}

// readCPixel reads one compressed pixel and writes it into out as a full
// native-format pixel.
func readCPixel(zr io.Reader, pf *PixelFormat, cpLen int, out []byte) error {
	var raw [4]byte
	if _, err := io.ReadFull(zr, raw[:cpLen]); err != nil {
		return decodeError("readCPixel", EncZRLE, "failed to read compressed pixel", err)
	}

	if cpLen == pf.BytesPerPixel() {
		copy(out, raw[:cpLen])
		return nil
	}

	var v uint32
	if pf.BigEndian {
		v = uint32(raw[0])<<16 | uint32(raw[1])<<8 | uint32(raw[2])
	} else {
		v = uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16
	}
	pf.PutPixel(out, v)
	return nil
}
