// Package isecnet implements the ISECNet wire protocol spoken by
// Intelbras alarm panels, in both of its dialects.
//
// V2 frames travel over the vendor cloud relay:
//
//	+------+------+------+---------+---------+----------+
//	| dest | src  | size | command | payload | checksum |
//	| 2B=0 | 2B   | 2B   | 2B      | N bytes | 1B       |
//	+------+------+------+---------+---------+----------+
//
// size counts command plus payload, big-endian. The checksum is the
// XOR of every preceding byte, inverted with 0xFF. During the cloud
// handshake the APP_CONNECT frame is additionally XOR-obfuscated with
// a key byte issued by the relay.
//
// V1 frames travel over a panel's direct IP-receiver endpoint and
// embed the panel password in every command:
//
//	+------+------+------+----------+---------+------+----------+
//	| size | 0xE9 | 0x21 | password | command | 0x21 | checksum |
//	| 1B   |      |      | ASCII    | N bytes |      | 1B       |
//	+------+------+------+----------+---------+------+----------+
//
// size counts everything between itself and the checksum. The same
// inverted-XOR checksum applies.
//
// The package also decodes status replies into model types and holds
// the command vocabulary for both dialects. It performs no I/O; the
// session package drives sockets.
package isecnet
