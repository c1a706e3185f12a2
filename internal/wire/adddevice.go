package wire

import (
	"encoding/binary"
	"io"

	"github.com/netevent/netevent/internal/bitfield"
	"github.com/netevent/netevent/internal/evcodes"
	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/log"
)

// EncodeAddDevicePayload writes the variable-length AddDevice payload
// that follows the fixed frame (spec §4.4 items 1-6): name, device id,
// top-level event bitfield, per-type sub-bitfields, AbsInfo records for
// every enabled absolute axis, and a zeroed trailing state bitfield.
func EncodeAddDevicePayload(w io.Writer, snap DeviceSnapshot, devNameSize int) error {
	name := make([]byte, devNameSize)
	copy(name, snap.Name)
	if err := writeFull(w, name); err != nil {
		return err
	}

	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint16(idBuf[0:2], snap.ID.Bustype)
	binary.BigEndian.PutUint16(idBuf[2:4], snap.ID.Vendor)
	binary.BigEndian.PutUint16(idBuf[4:6], snap.ID.Product)
	binary.BigEndian.PutUint16(idBuf[6:8], snap.ID.Version)
	if err := writeFull(w, idBuf); err != nil {
		return err
	}

	if err := writeBitfield(w, snap.EventTypes, evcodes.EV_MAX); err != nil {
		return err
	}

	var absErr error
	snap.EventTypes.Each(func(t int) {
		if absErr != nil {
			return
		}
		max, ok := evcodes.TypeMax(t)
		if !ok {
			return
		}
		bits := snap.TypeBits[t]
		if bits == nil {
			bits = bitfield.New(max)
		}
		absErr = writeBitfield(w, bits, max)
	})
	if absErr != nil {
		return absErr
	}

	if snap.EventTypes.Get(evcodes.EV_ABS) {
		absBits := snap.TypeBits[evcodes.EV_ABS]
		var err error
		absBits.Each(func(code int) {
			if err != nil {
				return
			}
			info := snap.AbsInfos[code]
			buf := make([]byte, 24)
			binary.BigEndian.PutUint32(buf[0:4], uint32(info.Value))
			binary.BigEndian.PutUint32(buf[4:8], uint32(info.Minimum))
			binary.BigEndian.PutUint32(buf[8:12], uint32(info.Maximum))
			binary.BigEndian.PutUint32(buf[12:16], uint32(info.Fuzz))
			binary.BigEndian.PutUint32(buf[16:20], uint32(info.Flat))
			binary.BigEndian.PutUint32(buf[20:24], uint32(info.Resolution))
			err = writeFull(w, buf)
		})
		if err != nil {
			return err
		}
	}

	// Trailing state bitfield, currently always zero.
	return writeBitfield(w, bitfield.New(evcodes.EV_MAX), evcodes.EV_MAX)
}

func writeBitfield(w io.Writer, b *bitfield.BitField, bitCount int) error {
	nbytes := (bitCount + 7) / 8
	hdr := make([]byte, 2)
	binary.BigEndian.PutUint16(hdr, uint16(bitCount))
	if err := writeFull(w, hdr); err != nil {
		return err
	}
	data := make([]byte, nbytes)
	copy(data, b.Bytes())
	return writeFull(w, data)
}

func readBitfield(r io.Reader) (*bitfield.BitField, int, error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, 0, neterr.IoErr(err, "read bitfield header")
	}
	bitCount := int(binary.BigEndian.Uint16(hdr))
	nbytes := (bitCount + 7) / 8
	data := make([]byte, nbytes)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, 0, neterr.IoErr(err, "read bitfield data")
	}
	return bitfield.FromBytes(data), bitCount, nil
}

// DecodeAddDevicePayload reads and materializes the variable-length
// AddDevice payload into a DeviceSnapshot. devNameSize must already have
// been validated by the caller against DevNameSize.
func DecodeAddDevicePayload(r io.Reader, devNameSize int) (DeviceSnapshot, error) {
	snap := DeviceSnapshot{TypeBits: map[int]*bitfield.BitField{}, AbsInfos: map[int]AbsInfo{}}

	name := make([]byte, devNameSize)
	if _, err := io.ReadFull(r, name); err != nil {
		return snap, neterr.IoErr(err, "read device name")
	}
	if idx := indexOfNUL(name); idx >= 0 {
		snap.Name = string(name[:idx])
	} else {
		snap.Name = string(name)
	}

	idBuf := make([]byte, 8)
	if _, err := io.ReadFull(r, idBuf); err != nil {
		return snap, neterr.IoErr(err, "read device id")
	}
	snap.ID = DeviceID{
		Bustype: binary.BigEndian.Uint16(idBuf[0:2]),
		Vendor:  binary.BigEndian.Uint16(idBuf[2:4]),
		Product: binary.BigEndian.Uint16(idBuf[4:6]),
		Version: binary.BigEndian.Uint16(idBuf[6:8]),
	}

	evBits, evCount, err := readBitfield(r)
	if err != nil {
		return snap, err
	}
	if evCount != evcodes.EV_MAX {
		return snap, neterr.New(neterr.Protocol, "top-level bitfield bit_count != EV_MAX")
	}
	snap.EventTypes = evBits

	var typeErr error
	evBits.Each(func(t int) {
		if typeErr != nil {
			return
		}
		if _, ok := evcodes.TypeMax(t); !ok {
			return
		}
		bits, _, err := readBitfield(r)
		if err != nil {
			typeErr = err
			return
		}
		snap.TypeBits[t] = bits
	})
	if typeErr != nil {
		return snap, typeErr
	}

	if evBits.Get(evcodes.EV_ABS) {
		absBits := snap.TypeBits[evcodes.EV_ABS]
		var absErr error
		absBits.Each(func(code int) {
			if absErr != nil {
				return
			}
			buf := make([]byte, 24)
			if _, err := io.ReadFull(r, buf); err != nil {
				absErr = neterr.IoErr(err, "read abs info")
				return
			}
			snap.AbsInfos[code] = AbsInfo{
				Value:      int32(binary.BigEndian.Uint32(buf[0:4])),
				Minimum:    int32(binary.BigEndian.Uint32(buf[4:8])),
				Maximum:    int32(binary.BigEndian.Uint32(buf[8:12])),
				Fuzz:       int32(binary.BigEndian.Uint32(buf[12:16])),
				Flat:       int32(binary.BigEndian.Uint32(buf[16:20])),
				Resolution: int32(binary.BigEndian.Uint32(buf[20:24])),
			}
		})
		if absErr != nil {
			return snap, absErr
		}
	}

	stateBits, _, err := readBitfield(r)
	if err != nil {
		return snap, err
	}
	if stateBits.Count() != 0 {
		// spec §4.4: receiver warns on the first nonzero bit and ignores it.
		first := -1
		stateBits.Each(func(i int) {
			if first < 0 {
				first = i
			}
		})
		log.Warnf("wire: AddDevice state bit %d is set; state bits are ignored", first)
	}
	return snap, nil
}

// SkipAddDevicePayload consumes the same number of bytes
// DecodeAddDevicePayload would, without building a DeviceSnapshot. Used
// by the receiver's --duplicates resume mode so the stream stays
// aligned without materializing a second device for an id already seen.
func SkipAddDevicePayload(r io.Reader, devNameSize int) error {
	_, err := DecodeAddDevicePayload(r, devNameSize)
	return err
}

func indexOfNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
