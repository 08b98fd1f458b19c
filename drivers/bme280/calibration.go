package bme280

// Calibration holds the factory trimming coefficients. Values are read
// verbatim from the device once after reset and never modified.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int16

	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	H1 uint8
	H2 int16
	H3 uint8
	H4 int16 // 12-bit signed
	H5 int16 // 12-bit signed
	H6 int8

	// valid is set only by ParseCalibration.
	valid bool
}

// Valid reports whether the coefficients came from a device read.
func (c *Calibration) Valid() bool { return c.valid }

// ParseCalibration decodes the 0x88..0xA1 block (26 bytes) and, when h is
// non-nil, the 0xE1..0xE7 humidity block (7 bytes).
func ParseCalibration(tp, h []byte) (Calibration, error) {
	var c Calibration
	if len(tp) < calibTPLen || (h != nil && len(h) < calibHLen) {
		return c, ErrBadCalibration
	}

	c.T1 = le16(tp[0:])
	c.T2 = int16(le16(tp[2:]))
	c.T3 = int16(le16(tp[4:]))

	c.P1 = le16(tp[6:])
	c.P2 = int16(le16(tp[8:]))
	c.P3 = int16(le16(tp[10:]))
	c.P4 = int16(le16(tp[12:]))
	c.P5 = int16(le16(tp[14:]))
	c.P6 = int16(le16(tp[16:]))
	c.P7 = int16(le16(tp[18:]))
	c.P8 = int16(le16(tp[20:]))
	c.P9 = int16(le16(tp[22:]))

	// tp[24] (0xA0) is reserved.
	if h != nil {
		c.H1 = tp[25]
		c.H2 = int16(le16(h[0:]))
		c.H3 = h[2]
		c.H4, c.H5 = unpackH4H5([3]byte{h[3], h[4], h[5]})
		c.H6 = int8(h[6])
	}

	c.valid = true
	return c, nil
}

// Bytes re-encodes the coefficients into the two register blocks. The
// reserved byte at 0xA0 is written as zero.
func (c *Calibration) Bytes() (tp [calibTPLen]byte, h [calibHLen]byte) {
	put16(tp[0:], c.T1)
	put16(tp[2:], uint16(c.T2))
	put16(tp[4:], uint16(c.T3))
	put16(tp[6:], c.P1)
	put16(tp[8:], uint16(c.P2))
	put16(tp[10:], uint16(c.P3))
	put16(tp[12:], uint16(c.P4))
	put16(tp[14:], uint16(c.P5))
	put16(tp[16:], uint16(c.P6))
	put16(tp[18:], uint16(c.P7))
	put16(tp[20:], uint16(c.P8))
	put16(tp[22:], uint16(c.P9))
	tp[25] = c.H1

	put16(h[0:], uint16(c.H2))
	h[2] = c.H3
	p := packH4H5(c.H4, c.H5)
	h[3], h[4], h[5] = p[0], p[1], p[2]
	h[6] = byte(c.H6)
	return tp, h
}

// unpackH4H5 decodes the 12-bit pair sharing register 0xE5:
//
//	H4 = E4[7:0] << 4 | E5[3:0]
//	H5 = E6[7:0] << 4 | E5[7:4]
//
// E4 and E6 carry the sign.
func unpackH4H5(b [3]byte) (h4, h5 int16) {
	h4 = int16(int8(b[0]))<<4 | int16(b[1]&0x0F)
	h5 = int16(int8(b[2]))<<4 | int16(b[1]>>4)
	return h4, h5
}

// packH4H5 is the inverse of unpackH4H5 for values in the 12-bit signed range.
func packH4H5(h4, h5 int16) [3]byte {
	return [3]byte{
		byte(h4 >> 4),
		byte(h4&0x0F) | byte(h5&0x0F)<<4,
		byte(h5 >> 4),
	}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func put16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
