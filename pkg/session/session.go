package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/isecnet-bridge/isecnet-go/pkg/isecnet"
	"github.com/isecnet-bridge/isecnet-go/pkg/log"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
)

// readBufSize bounds one read from the panel. No legitimate reply
// exceeds it: the largest V2 status frame is 144 bytes and a complete
// V1 dump stays under 128.
const readBufSize = 1024

// Session is one panel connection. It owns the socket, walks the
// handshake to the authorized stage, and issues commands in strict
// request/response order under an internal mutex.
type Session struct {
	cfg Config

	// id names this connection in log events.
	id string

	mode     model.TransportMode
	mac      string
	account  string
	password string

	// receiverAddr is the IP-receiver endpoint, empty on cloud.
	receiverAddr string

	mu   sync.Mutex
	conn net.Conn
	addr string

	// src is the source id the relay assigns at APP_CONNECT. Zero in
	// receiver mode and during the handshake.
	src [2]byte

	// modelCode is learned from the first status reply; the V1
	// complete-status command byte depends on it.
	modelCode byte

	stage    atomic.Int32
	lastUsed atomic.Int64
}

// New builds a session for the panel the descriptor names. The session
// starts disconnected; Connect dials and authenticates.
func New(cfg Config, info model.ConnectionInfo, password string) *Session {
	s := &Session{
		cfg:      cfg.withDefaults(),
		id:       uuid.NewString(),
		mode:     info.Mode,
		mac:      model.NormalizeMAC(info.MAC),
		account:  info.ReceiverAccount,
		password: password,
	}
	if info.Mode == model.TransportIPReceiver {
		port := info.ReceiverPort
		if port == 0 {
			port = DefaultReceiverPort
		}
		s.receiverAddr = net.JoinHostPort(info.ReceiverHost, strconv.Itoa(port))
	}
	s.stage.Store(int32(StageDisconnected))
	return s
}

// ID returns the connection id used in log events.
func (s *Session) ID() string { return s.id }

// Mode returns the session transport.
func (s *Session) Mode() model.TransportMode { return s.mode }

// Stage returns the current handshake stage.
func (s *Session) Stage() Stage { return Stage(s.stage.Load()) }

// LastUsed returns the time of the last successful exchange.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()) }

// Matches reports whether the session reaches the same panel the
// descriptor names, over the same transport.
func (s *Session) Matches(info model.ConnectionInfo) bool {
	if s.mode != info.Mode {
		return false
	}
	if s.mac != model.NormalizeMAC(info.MAC) {
		return false
	}
	if s.mode == model.TransportIPReceiver {
		return s.account == info.ReceiverAccount && s.receiverAddr == receiverAddr(info)
	}
	return true
}

func receiverAddr(info model.ConnectionInfo) string {
	port := info.ReceiverPort
	if port == 0 {
		port = DefaultReceiverPort
	}
	return net.JoinHostPort(info.ReceiverHost, strconv.Itoa(port))
}

// Connect dials the panel and walks the handshake to the authorized
// stage. Any refusal, mismatch, or I/O error tears the session down
// and closes the socket.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if Stage(s.stage.Load()) != StageDisconnected {
		return ErrAlreadyConnected
	}

	if err := s.connectLocked(ctx); err != nil {
		s.logError(log.LayerProtocol, "handshake", err)
		s.teardown("handshake failed")
		return err
	}
	return nil
}

func (s *Session) connectLocked(ctx context.Context) error {
	conn, addr, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.conn = conn
	s.addr = addr
	s.setStage(StageTCPOpen, "tcp connected")

	if s.mode == model.TransportIPReceiver {
		err = s.handshakeReceiver(ctx)
	} else {
		err = s.handshakeCloud(ctx)
	}
	if err != nil {
		return err
	}

	s.setStage(StageAuthorized, "handshake complete")
	s.touch()
	return nil
}

// dial tries each candidate address until one accepts. The cloud relay
// listens on a fallback port for networks that block the primary.
func (s *Session) dial(ctx context.Context) (net.Conn, string, error) {
	addrs := []string{s.receiverAddr}
	if s.mode == model.TransportCloud {
		addrs = s.cfg.RelayAddrs
	}

	var firstErr error
	for _, addr := range addrs {
		dctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		conn, err := s.cfg.Dialer(dctx, "tcp", addr)
		cancel()
		if err == nil {
			return conn, addr, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, "", fmt.Errorf("dial: %w", firstErr)
}

// handshakeCloud walks the three V2 handshake exchanges: CONNECT
// issues the obfuscation key, APP_CONNECT names the panel and assigns
// the source id, AUTHORIZE presents the password.
func (s *Session) handshakeCloud(ctx context.Context) error {
	frame := isecnet.EncodeV2(isecnet.CmdConnect, isecnet.ConnectPayload(), [2]byte{})
	reply, err := s.exchange(ctx, log.CategoryControl, frame, s.cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("connect handshake: %w", err)
	}
	pkt, err := isecnet.DecodeV2(reply)
	if err != nil {
		return fmt.Errorf("connect handshake: %w", err)
	}
	if len(pkt.Payload) < 1 {
		return fmt.Errorf("connect handshake: %w", isecnet.ErrShortFrame)
	}
	xorKey := pkt.Payload[0]
	s.setStage(StageServerOK, "relay accepted")

	frame = isecnet.EncodeV2(isecnet.CmdAppConnect, isecnet.AppConnectPayload(s.mac), [2]byte{})
	frame = isecnet.Obfuscate(frame, xorKey)
	reply, err = s.exchange(ctx, log.CategoryControl, frame, s.cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("app connect handshake: %w", err)
	}
	pkt, err = isecnet.DecodeV2(reply)
	if err != nil {
		return fmt.Errorf("app connect handshake: %w", err)
	}
	if len(pkt.Payload) < 1 {
		return fmt.Errorf("app connect handshake: %w", isecnet.ErrShortFrame)
	}
	if res := isecnet.ConnectResult(pkt.Payload[0]); res != isecnet.ConnectSuccess {
		return &HandshakeError{Step: "app_connect", Result: res}
	}
	if len(pkt.Payload) >= 3 {
		s.src = [2]byte{pkt.Payload[1], pkt.Payload[2]}
	}
	s.setStage(StageAppOK, "panel reachable")

	frame = isecnet.EncodeV2(isecnet.CmdAuthorize, isecnet.AuthorizePayload(s.password), s.src)
	reply, err = s.exchange(ctx, log.CategoryControl, frame, s.cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	pkt, err = isecnet.DecodeV2(reply)
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	if pkt.Cmd == isecnet.CmdNack {
		var code byte
		if len(pkt.Payload) > 0 {
			code = pkt.Payload[0]
		}
		return fmt.Errorf("authorize: %w", &CommandError{Code: code})
	}
	if len(pkt.Payload) < 1 {
		return fmt.Errorf("authorize: %w", isecnet.ErrShortFrame)
	}
	if res := isecnet.AuthResult(pkt.Payload[0]); res != isecnet.AuthAccepted {
		return &AuthError{Reason: res.String()}
	}
	return nil
}

// handshakeReceiver walks the two IP-receiver exchanges. There is no
// authorize step: V1 commands re-embed the password.
func (s *Session) handshakeReceiver(ctx context.Context) error {
	reply, err := s.exchange(ctx, log.CategoryControl, isecnet.EncodeGetByte(), s.cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("get byte handshake: %w", err)
	}
	if !isecnet.GetByteOK(reply) {
		return &HandshakeError{Step: "get_byte", Result: isecnet.ConnectNotConnected}
	}
	s.setStage(StageServerOK, "receiver accepted")

	reply, err = s.exchange(ctx, log.CategoryControl, isecnet.EncodeReceiverConnect(s.account), s.cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("app connect handshake: %w", err)
	}
	if res := isecnet.ReceiverConnectResult(reply); res != isecnet.ConnectSuccess {
		return &HandshakeError{Step: "app_connect", Result: res}
	}
	s.setStage(StageAppOK, "account accepted")
	return nil
}

// Status reads and parses the panel status: the single V2 status
// command on cloud, the V1 partial status on a receiver.
func (s *Session) Status(ctx context.Context) (model.AlarmStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return model.AlarmStatus{}, err
	}

	if s.mode == model.TransportIPReceiver {
		return s.v1Status(ctx)
	}
	return s.v2Status(ctx)
}

// CompleteStatus reads the extended status carrying wireless zone
// attributes. On cloud transport the regular status frame already
// carries everything; on a receiver the command byte depends on the
// panel model, learned from a partial status when not yet known.
func (s *Session) CompleteStatus(ctx context.Context) (model.AlarmStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return model.AlarmStatus{}, err
	}

	if s.mode == model.TransportCloud {
		return s.v2Status(ctx)
	}

	if s.modelCode == 0 {
		if _, err := s.v1Status(ctx); err != nil {
			return model.AlarmStatus{}, err
		}
	}

	cmd := isecnet.V1CompleteStatusCommand(s.modelCode)
	_, raw, err := s.roundTripV1(ctx, "complete status", cmd, s.cfg.ReadTimeout)
	if err != nil {
		return model.AlarmStatus{}, err
	}
	return s.parseV1Status(raw, isecnet.ParseCompleteStatus)
}

func (s *Session) v2Status(ctx context.Context) (model.AlarmStatus, error) {
	pkt, err := s.roundTripV2(ctx, isecnet.CmdPanelStatus, nil, log.CategoryMessage)
	if err != nil {
		return model.AlarmStatus{}, err
	}
	st, err := isecnet.ParseV2Status(pkt.Raw)
	if err != nil {
		s.logError(log.LayerProtocol, "status", err)
		return model.AlarmStatus{}, fmt.Errorf("panel status: %w", err)
	}
	if st.ModelCode != 0 {
		s.modelCode = st.ModelCode
	}
	return st, nil
}

func (s *Session) v1Status(ctx context.Context) (model.AlarmStatus, error) {
	_, raw, err := s.roundTripV1(ctx, "status", isecnet.V1StatusCommand(), s.cfg.ReadTimeout)
	if err != nil {
		return model.AlarmStatus{}, err
	}
	return s.parseV1Status(raw, isecnet.ParsePartialStatus)
}

// parseV1Status decodes a status dump. Frame decoding is best-effort:
// field panels emit dumps with stale checksums, so a decode error with
// a usable body is logged and the body parsed anyway.
func (s *Session) parseV1Status(raw []byte, parse func([]byte) (model.AlarmStatus, error)) (model.AlarmStatus, error) {
	reply, err := isecnet.DecodeV1(raw)
	if err != nil && len(reply.Data) == 0 {
		s.logError(log.LayerProtocol, "status", err)
		return model.AlarmStatus{}, fmt.Errorf("panel status: %w", err)
	}
	if err != nil {
		s.logError(log.LayerProtocol, "status", err)
	}

	st, err := parse(reply.Data)
	if err != nil {
		s.logError(log.LayerProtocol, "status", err)
		return model.AlarmStatus{}, fmt.Errorf("panel status: %w", err)
	}
	if st.ModelCode != 0 {
		s.modelCode = st.ModelCode
	}
	return st, nil
}

// Arm arms the panel. A nil partition targets all partitions on V2 and
// omits the partition letter on V1; stay selects stay mode.
//
// V1 panels often acknowledge an arm with silence: when no frame
// arrives within ArmReadTimeout the command counts as sent and Arm
// returns ErrUnverified, leaving the session authorized. Callers
// confirm with a status read.
func (s *Session) Arm(ctx context.Context, partition *int, stay bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return err
	}

	if s.mode == model.TransportIPReceiver {
		return s.v1Arm(ctx, partition, stay)
	}

	op := isecnet.OpArmAway
	if stay {
		op = isecnet.OpArmStay
	}
	_, err := s.roundTripV2(ctx, isecnet.CmdArmDisarm, isecnet.ArmPayload(op, partition), log.CategoryMessage)
	return err
}

func (s *Session) v1Arm(ctx context.Context, partition *int, stay bool) error {
	cmd := isecnet.V1ArmCommand(partition, stay)
	frame := isecnet.EncodeV1(cmd, s.password)
	start := s.cfg.Now()

	raw, err := s.exchange(ctx, log.CategoryMessage, frame, s.cfg.ArmReadTimeout)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			s.logCommand(&log.CommandEvent{
				Dialect:     log.DialectV1,
				Code:        uint16(cmd[0]),
				Name:        isecnet.V1CommandName(cmd[0]),
				Result:      "unverified",
				PayloadSize: len(cmd),
			})
			s.touch()
			return ErrUnverified
		}
		return s.fail("arm", err)
	}

	_, err = s.classifyV1(cmd, raw, start)
	return err
}

// Disarm disarms the panel. A nil partition targets all partitions on
// V2 and omits the partition letter on V1.
func (s *Session) Disarm(ctx context.Context, partition *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return err
	}

	if s.mode == model.TransportIPReceiver {
		_, _, err := s.roundTripV1(ctx, "disarm", isecnet.V1DisarmCommand(partition), s.cfg.ReadTimeout)
		return err
	}
	_, err := s.roundTripV2(ctx, isecnet.CmdArmDisarm, isecnet.ArmPayload(isecnet.OpDisarm, partition), log.CategoryMessage)
	return err
}

// Bypass sets or clears the bypass flag on the named zone indices.
// Cloud transport only.
func (s *Session) Bypass(ctx context.Context, zones []int, bypass bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return err
	}
	if s.mode == model.TransportIPReceiver {
		return ErrUnsupported
	}
	_, err := s.roundTripV2(ctx, isecnet.CmdBypassZone, isecnet.BypassPayload(zones, bypass), log.CategoryMessage)
	return err
}

// SirenOff silences the siren without changing the arm state.
func (s *Session) SirenOff(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return err
	}

	if s.mode == model.TransportIPReceiver {
		_, _, err := s.roundTripV1(ctx, "siren off", isecnet.V1SirenOffCommand(), s.cfg.ReadTimeout)
		return err
	}
	_, err := s.roundTripV2(ctx, isecnet.CmdSirenOff, nil, log.CategoryMessage)
	return err
}

// FenceShock switches the electrified-fence shock section. Fence
// models only; cloud transport only.
func (s *Session) FenceShock(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return err
	}
	if s.mode == model.TransportIPReceiver {
		return ErrUnsupported
	}
	_, err := s.roundTripV2(ctx, isecnet.CmdArmDisarm, isecnet.FenceShockPayload(on), log.CategoryMessage)
	return err
}

// FenceAlarm switches the electrified-fence alarm section. Fence
// models only; cloud transport only.
func (s *Session) FenceAlarm(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return err
	}
	if s.mode == model.TransportIPReceiver {
		return ErrUnsupported
	}
	_, err := s.roundTripV2(ctx, isecnet.CmdArmDisarm, isecnet.FenceAlarmPayload(on), log.CategoryMessage)
	return err
}

// PGM switches a programmable output. Cloud transport only.
func (s *Session) PGM(ctx context.Context, index int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return err
	}
	if s.mode == model.TransportIPReceiver {
		return ErrUnsupported
	}
	_, err := s.roundTripV2(ctx, isecnet.CmdPGM, isecnet.PGMPayload(index, on), log.CategoryMessage)
	return err
}

// MAC asks the panel for its MAC address. Cloud transport only.
func (s *Session) MAC(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return "", err
	}
	if s.mode == model.TransportIPReceiver {
		return "", ErrUnsupported
	}

	pkt, err := s.roundTripV2(ctx, isecnet.CmdGetMAC, isecnet.MACPayload(), log.CategoryMessage)
	if err != nil {
		return "", err
	}
	mac, err := isecnet.ParseMAC(pkt.Raw)
	if err != nil {
		s.logError(log.LayerProtocol, "get mac", err)
		return "", fmt.Errorf("get mac: %w", err)
	}
	return mac, nil
}

// KeepAlive tells the relay the session is still wanted. Receivers
// have no keep-alive verb; there the call is a no-op.
func (s *Session) KeepAlive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureAuthorized(); err != nil {
		return err
	}
	if s.mode == model.TransportIPReceiver {
		return nil
	}
	_, err := s.roundTripV2(ctx, isecnet.CmdKeepAlive, nil, log.CategoryControl)
	return err
}

// Disconnect announces the teardown to the relay and closes the
// socket. The announcement is best-effort; the socket closes
// regardless. Disconnecting a disconnected session is a no-op.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if Stage(s.stage.Load()) == StageDisconnected {
		return nil
	}

	if s.conn != nil && s.mode == model.TransportCloud && Stage(s.stage.Load()) == StageAuthorized {
		frame := isecnet.EncodeV2(isecnet.CmdDisconnect, nil, s.src)
		s.logFrame(log.DirectionOut, log.CategoryControl, frame)
		s.conn.SetWriteDeadline(s.opDeadline(ctx, s.cfg.ReadTimeout))
		s.conn.Write(frame)
	}

	s.teardown("disconnect requested")
	return nil
}

func (s *Session) ensureAuthorized() error {
	if Stage(s.stage.Load()) != StageAuthorized {
		return ErrNotAuthorized
	}
	return nil
}

// roundTripV2 sends one V2 command and classifies the reply: NACK is a
// CommandError, ACK and every other frame are success. Callers hold
// s.mu on an authorized session.
func (s *Session) roundTripV2(ctx context.Context, cmd isecnet.Command, payload []byte, cat log.Category) (isecnet.V2Packet, error) {
	frame := isecnet.EncodeV2(cmd, payload, s.src)
	start := s.cfg.Now()

	raw, err := s.exchange(ctx, cat, frame, s.cfg.ReadTimeout)
	if err != nil {
		return isecnet.V2Packet{}, s.fail(cmd.String(), err)
	}
	pkt, err := isecnet.DecodeV2(raw)
	if err != nil {
		return isecnet.V2Packet{}, s.fail(cmd.String(), err)
	}

	dur := s.cfg.Now().Sub(start)
	ev := &log.CommandEvent{
		Dialect:        log.DialectV2,
		Code:           uint16(cmd),
		Name:           cmd.String(),
		PayloadSize:    len(payload),
		ProcessingTime: &dur,
	}

	if pkt.Cmd == isecnet.CmdNack {
		var code byte
		if len(pkt.Payload) > 0 {
			code = pkt.Payload[0]
		}
		ev.Result = "nack"
		s.logCommand(ev)
		cerr := &CommandError{Code: code, Message: isecnet.NackMessage(code)}
		s.logError(log.LayerProtocol, cmd.String(), cerr)
		return pkt, cerr
	}

	if pkt.Cmd == isecnet.CmdAck {
		ev.Result = "ack"
	} else {
		ev.Result = "reply"
	}
	s.logCommand(ev)
	return pkt, nil
}

// roundTripV1 sends one V1 command and classifies the reply. I/O
// failures tear the session down; a refusal code comes back as a
// CommandError with the session intact.
func (s *Session) roundTripV1(ctx context.Context, op string, cmd []byte, readTimeout time.Duration) (isecnet.V1Result, []byte, error) {
	frame := isecnet.EncodeV1(cmd, s.password)
	start := s.cfg.Now()

	raw, err := s.exchange(ctx, log.CategoryMessage, frame, readTimeout)
	if err != nil {
		return isecnet.V1Result{}, nil, s.fail(op, err)
	}

	res, err := s.classifyV1(cmd, raw, start)
	return res, raw, err
}

func (s *Session) classifyV1(cmd []byte, raw []byte, start time.Time) (isecnet.V1Result, error) {
	res := isecnet.ClassifyV1(raw)
	dur := s.cfg.Now().Sub(start)

	ev := &log.CommandEvent{
		Dialect:        log.DialectV1,
		Code:           uint16(cmd[0]),
		Name:           isecnet.V1CommandName(cmd[0]),
		PayloadSize:    len(cmd),
		ProcessingTime: &dur,
	}
	switch {
	case res.StatusDump:
		ev.Result = "status"
	case res.OK:
		ev.Result = "ok"
	default:
		ev.Result = res.Code.Message()
	}
	s.logCommand(ev)

	if !res.OK {
		cerr := &CommandError{Code: byte(res.Code), Message: res.Code.Message()}
		s.logError(log.LayerProtocol, isecnet.V1CommandName(cmd[0]), cerr)
		return res, cerr
	}
	return res, nil
}

// exchange writes one frame and reads one reply, logging both. The
// caller holds s.mu; errors come back raw so the caller decides
// between teardown and the arm-verify path.
func (s *Session) exchange(ctx context.Context, cat log.Category, frame []byte, readTimeout time.Duration) ([]byte, error) {
	deadline := s.opDeadline(ctx, readTimeout)

	s.logFrame(log.DirectionOut, cat, frame)
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if _, err := s.conn.Write(frame); err != nil {
		return nil, err
	}

	var reply []byte
	var err error
	if s.mode == model.TransportIPReceiver {
		reply, err = readReply(s.conn, deadline)
	} else {
		reply, err = readV2Frame(s.conn, deadline)
	}
	if err != nil {
		return nil, err
	}

	s.logFrame(log.DirectionIn, cat, reply)
	s.touch()
	return reply, nil
}

// opDeadline folds the per-exchange timeout and any context deadline
// into one socket deadline.
func (s *Session) opDeadline(ctx context.Context, d time.Duration) time.Time {
	deadline := time.Now().Add(d)
	if cd, ok := ctx.Deadline(); ok && cd.Before(deadline) {
		deadline = cd
	}
	return deadline
}

// readV2Frame accumulates reads until the size field's worth of frame
// has arrived. The relay writes one frame per command but may split it
// across segments.
func readV2Frame(conn net.Conn, deadline time.Time) ([]byte, error) {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, readBufSize)
	tmp := make([]byte, readBufSize)
	for {
		n, err := conn.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if want := isecnet.V2FrameLen(buf); want > 0 && len(buf) >= want {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// readReply reads whatever the peer sends in one segment. Receivers
// answer each command with a single small frame; the bytes are
// classified best-effort.
func readReply(conn net.Conn, deadline time.Time) ([]byte, error) {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	buf := make([]byte, readBufSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// fail tears the session down after an I/O or framing error and
// returns the wrapped error. Callers hold s.mu.
func (s *Session) fail(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	s.logError(log.LayerTransport, op, err)
	s.teardown("io error")
	return err
}

// teardown closes the socket and resets the stage. Safe to call twice;
// callers hold s.mu.
func (s *Session) teardown(reason string) {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.src = [2]byte{}
	s.setStage(StageDisconnected, reason)
}

func (s *Session) touch() {
	s.lastUsed.Store(s.cfg.Now().UnixNano())
}

func (s *Session) setStage(to Stage, reason string) {
	from := Stage(s.stage.Swap(int32(to)))
	if from == to {
		return
	}
	s.log(log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerProtocol,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

func (s *Session) logFrame(dir log.Direction, cat log.Category, frame []byte) {
	s.log(log.Event{
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  cat,
		Frame:     log.NewFrameEvent(s.dialect(), frame),
	})
}

func (s *Session) logCommand(ev *log.CommandEvent) {
	s.log(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerProtocol,
		Category:  log.CategoryMessage,
		Command:   ev,
	})
}

func (s *Session) logError(layer log.Layer, context string, err error) {
	data := &log.ErrorEventData{Layer: layer, Message: err.Error(), Context: context}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		code := int(cmdErr.Code)
		data.Code = &code
	}
	s.log(log.Event{
		Direction: log.DirectionIn,
		Layer:     layer,
		Category:  log.CategoryError,
		Error:     data,
	})
}

func (s *Session) log(ev log.Event) {
	ev.Timestamp = s.cfg.Now()
	ev.ConnectionID = s.id
	ev.Transport = s.transport()
	ev.RemoteAddr = s.addr
	ev.PanelID = s.panelID()
	s.cfg.Logger.Log(ev)
}

func (s *Session) dialect() log.Dialect {
	if s.mode == model.TransportIPReceiver {
		return log.DialectV1
	}
	return log.DialectV2
}

func (s *Session) transport() log.Transport {
	if s.mode == model.TransportIPReceiver {
		return log.TransportReceiver
	}
	return log.TransportCloud
}

func (s *Session) panelID() string {
	if s.mode == model.TransportIPReceiver {
		return s.account
	}
	return s.mac
}
