package isecnet

// V1 framing constants.
const (
	v1Delimiter byte = 0x21 // '!'

	// v1PartialStatusLen is the full length of a partial status reply.
	v1PartialStatusLen = 46

	// v1CompleteStatusMin is the threshold above which a V1 reply is a
	// complete status dump.
	v1CompleteStatusMin = 96
)

// EncodeV1 wraps command bytes in a V1 frame, embedding the panel
// password as ASCII. Every V1 command authenticates itself this way;
// the dialect has no separate authorize step.
func EncodeV1(cmd []byte, password string) []byte {
	size := len(cmd) + len(password) + 3
	buf := make([]byte, 0, size+2)
	buf = append(buf, byte(size), v1Program, v1Delimiter)
	buf = append(buf, password...)
	buf = append(buf, cmd...)
	buf = append(buf, v1Delimiter)
	return append(buf, Checksum(buf))
}

// V1Reply is a decoded V1 frame.
type V1Reply struct {
	// Data holds the bytes between the size byte and the checksum.
	Data []byte

	// Raw is the frame as read.
	Raw []byte
}

// Code returns the reply code carried at data offset 1, or
// V1CodeUnknown when the reply is too short to carry one.
func (r V1Reply) Code() V1Code {
	if len(r.Data) < 2 {
		return V1CodeUnknown
	}
	return V1Code(r.Data[1])
}

// DecodeV1 parses a V1 frame. Decoding is best-effort: on a truncated
// buffer or checksum mismatch the available body is still returned
// alongside the error, because panels in the field emit both and the
// bytes remain useful for diagnostics.
func DecodeV1(buf []byte) (V1Reply, error) {
	if len(buf) < 2 {
		return V1Reply{Raw: buf}, parseErr(ErrShortFrame, buf)
	}

	size := int(buf[0])
	total := size + 2
	if len(buf) < total {
		return V1Reply{Data: buf[1:], Raw: buf}, parseErr(ErrShortFrame, buf)
	}

	reply := V1Reply{Data: buf[1 : size+1], Raw: buf[:total]}
	if Checksum(buf[:size+1]) != buf[size+1] {
		return reply, parseErr(ErrBadChecksum, buf[:total])
	}
	return reply, nil
}

// EncodeGetByte builds the first IP-receiver handshake frame.
func EncodeGetByte() []byte {
	buf := []byte{0x02, receiverGetByte, 0x01}
	return append(buf, Checksum(buf))
}

// GetByteOK reports whether a GET_BYTE reply accepted the session.
func GetByteOK(reply []byte) bool {
	return len(reply) >= 3 && reply[2] == 0x01
}

// EncodeReceiverConnect builds the second IP-receiver handshake frame
// carrying the panel account as ASCII.
func EncodeReceiverConnect(account string) []byte {
	buf := make([]byte, 0, len(account)+4)
	buf = append(buf, byte(2+len(account)), receiverConnect, receiverEthernet)
	buf = append(buf, account...)
	return append(buf, Checksum(buf))
}

// ReceiverConnectResult maps a receiver APP_CONNECT reply onto the
// shared ConnectResult scale: byte 2 equal to 1 is success, anything
// else means the receiver refused the account.
func ReceiverConnectResult(reply []byte) ConnectResult {
	if len(reply) >= 3 && reply[2] == 0x01 {
		return ConnectSuccess
	}
	return ConnectNotConnected
}

// V1Result classifies a V1 command reply.
type V1Result struct {
	// OK reports command success.
	OK bool

	// Code is the reply code when the panel sent one. Status dumps
	// carry V1CodeSuccess.
	Code V1Code

	// StatusDump reports the reply is a 46-byte partial or >= 96-byte
	// complete status packet, which panels send instead of an explicit
	// acknowledgment.
	StatusDump bool
}

// ClassifyV1 applies the reply-length rules observed in the official
// app: a 46-byte packet is a partial status dump, 96 bytes or more a
// complete one, and both mean success. Shorter replies carry a code at
// byte 2. Unknown codes count as success, matching the app.
func ClassifyV1(raw []byte) V1Result {
	if len(raw) == v1PartialStatusLen || len(raw) >= v1CompleteStatusMin {
		return V1Result{OK: true, Code: V1CodeSuccess, StatusDump: true}
	}
	if len(raw) < 3 {
		return V1Result{OK: false, Code: V1CodeUnknown}
	}

	code := V1Code(raw[2])
	switch code {
	case V1CodeSuccess:
		return V1Result{OK: true, Code: code}
	case V1CodeUnknown, V1CodeInvalidPacket, V1CodeIncorrectPassword,
		V1CodeInvalidCommand, V1CodeNoPartitions, V1CodeOpenZones,
		V1CodeDeprecated, V1CodeBypassDenied, V1CodeDeactivationDenied,
		V1CodeBypassWhileArmed, V1CodeInvalidModel:
		return V1Result{OK: false, Code: code}
	default:
		return V1Result{OK: true, Code: code}
	}
}
