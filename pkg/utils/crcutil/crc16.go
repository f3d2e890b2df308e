package crcutil

var crc16Table = makeCrc16Table(0xA001)

func makeCrc16Table(poly uint16) [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for j := 0; j < 8; j++ {
			if crc&0x0001 != 0 {
				crc = crc>>1 ^ poly
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

// Crc16 modbus crc16, init 0xFFFF poly 0xA001
func Crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = crc>>8 ^ crc16Table[byte(crc)^b]
	}
	return crc
}

// CheckCrc16sum 返回高低字节交换后的校验码, 按大端写入即得到报文中的低字节在前顺序
func CheckCrc16sum(data []byte) uint16 {
	crc := Crc16(data)
	return crc<<8 | crc>>8
}
