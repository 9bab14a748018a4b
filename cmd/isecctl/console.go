package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/isecnet-bridge/isecnet-go/pkg/log"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
	"github.com/isecnet-bridge/isecnet-go/pkg/session"
)

// console drives one panel session from the readline loop.
type console struct {
	rl       *readline.Instance
	cfg      session.Config
	info     model.ConnectionInfo
	password string
	echo     *frameEcho

	sess *session.Session
}

// run starts the interactive command loop.
func (c *console) run(ctx context.Context, cancel context.CancelFunc) {
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			c.quit(ctx, cancel)
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "connect", "c":
			c.cmdConnect(ctx)

		case "disconnect":
			c.cmdDisconnect(ctx)

		case "status", "s":
			c.cmdStatus(ctx, false)

		case "full", "f":
			c.cmdStatus(ctx, true)

		case "arm":
			c.cmdArm(ctx, args)

		case "disarm":
			c.cmdDisarm(ctx, args)

		case "bypass":
			c.cmdBypass(ctx, args)

		case "siren-off", "siren":
			c.cmdSirenOff(ctx)

		case "shock":
			c.cmdFence(ctx, args, true)

		case "fence":
			c.cmdFence(ctx, args, false)

		case "pgm":
			c.cmdPGM(ctx, args)

		case "mac":
			c.cmdMAC(ctx)

		case "keepalive", "ka":
			c.cmdKeepAlive(ctx)

		case "hex":
			c.cmdHex(args)

		case "replay":
			c.cmdReplay(args)

		case "quit", "exit", "q":
			c.quit(ctx, cancel)
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
ISECNet Panel Console:
  Connection:
    connect                  - Dial the panel and run the handshake
    disconnect               - Tear the connection down
    keepalive                - Ping the relay

  Panel Control:
    status                   - Read the partial status
    full                     - Read the complete status (wireless detail)
    arm [partition] [stay]   - Arm away, or stay with the keyword
    disarm [partition]       - Disarm
    bypass <zones...> on|off - Bypass or reinstate zones (1-based)
    siren-off                - Silence the siren
    shock on|off             - Switch the fence shock sector
    fence on|off             - Switch the fence alarm sector
    pgm <index> on|off       - Drive a PGM output
    mac                      - Read the panel MAC

  Diagnostics:
    hex [on|off]             - Toggle frame hex echo
    replay <file>            - Print the frames of a capture file

  General:
    help                     - Show this help
    quit                     - Exit the console`)
}

func (c *console) quit(ctx context.Context, cancel context.CancelFunc) {
	fmt.Fprintln(c.rl.Stdout(), "Exiting...")
	if c.sess != nil {
		c.sess.Disconnect(ctx)
		c.sess = nil
	}
	cancel()
}

// connected returns the live session, printing guidance when there is
// none.
func (c *console) connected() *session.Session {
	if c.sess == nil || c.sess.Stage() != session.StageAuthorized {
		fmt.Fprintln(c.rl.Stdout(), "Not connected (use 'connect')")
		return nil
	}
	return c.sess
}

// cmdConnect handles the connect command.
func (c *console) cmdConnect(ctx context.Context) {
	if c.sess != nil && c.sess.Stage() == session.StageAuthorized {
		fmt.Fprintln(c.rl.Stdout(), "Already connected")
		return
	}

	if c.password == "" {
		pw, err := c.rl.ReadPassword("Panel password: ")
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Password read failed: %v\n", err)
			return
		}
		c.password = string(pw)
	}

	target := c.info.MAC
	if c.info.Mode == model.TransportIPReceiver {
		target = fmt.Sprintf("%s:%d (account %s)", c.info.ReceiverHost, c.info.ReceiverPort, c.info.ReceiverAccount)
	}
	fmt.Fprintf(c.rl.Stdout(), "Connecting to %s over %s...\n", target, c.info.Mode)

	sess := session.New(c.cfg, c.info, c.password)
	start := time.Now()
	if err := sess.Connect(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}

	c.sess = sess
	fmt.Fprintf(c.rl.Stdout(), "Connected in %s\n", time.Since(start).Round(time.Millisecond))
}

// cmdDisconnect handles the disconnect command.
func (c *console) cmdDisconnect(ctx context.Context) {
	if c.sess == nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}

	if err := c.sess.Disconnect(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Disconnect failed: %v\n", err)
	}
	c.sess = nil
	fmt.Fprintln(c.rl.Stdout(), "Disconnected")
}

// cmdStatus handles the status and full commands.
func (c *console) cmdStatus(ctx context.Context, complete bool) {
	sess := c.connected()
	if sess == nil {
		return
	}

	var (
		st  model.AlarmStatus
		err error
	)
	if complete {
		st, err = sess.CompleteStatus(ctx)
	} else {
		st, err = sess.Status(ctx)
	}
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Status failed: %v\n", err)
		return
	}

	c.printStatus(st)
}

// printStatus renders a status read as an aligned block.
func (c *console) printStatus(st model.AlarmStatus) {
	out := c.rl.Stdout()

	fmt.Fprintln(out, "\nPanel Status")
	fmt.Fprintln(out, "-------------------------------------------")
	fmt.Fprintf(out, "  Model:      %s\n", st.ModelName)
	if st.MAC != "" {
		fmt.Fprintf(out, "  MAC:        %s\n", st.MAC)
	}
	fmt.Fprintf(out, "  Mode:       %s\n", st.Mode)
	fmt.Fprintf(out, "  Triggered:  %v\n", st.Triggered)
	fmt.Fprintf(out, "  Siren:      %v\n", st.Siren)
	if st.Battery > 0 {
		fmt.Fprintf(out, "  Battery:    0x%02X\n", st.Battery)
	}
	if st.Fence != nil {
		fmt.Fprintf(out, "  Shock:      %s\n", fenceState(st.Fence.ShockEnabled, st.Fence.ShockTriggered))
		fmt.Fprintf(out, "  Fence:      %s\n", fenceState(st.Fence.AlarmEnabled, st.Fence.AlarmTriggered))
	}

	if st.PartitionsEnabled && len(st.Partitions) > 0 {
		fmt.Fprintln(out, "  Partitions:")
		for _, p := range st.Partitions {
			fmt.Fprintf(out, "    %d: %s\n", p.Index+1, p.State)
		}
	}

	open := 0
	for _, z := range st.Zones {
		if z.Open {
			open++
		}
	}
	fmt.Fprintf(out, "  Zones:      %d (%d open)\n", len(st.Zones), open)
	for _, z := range st.Zones {
		flags := zoneFlags(z)
		if len(flags) == 0 {
			continue
		}
		fmt.Fprintf(out, "    %-10s %s\n", z.Name+":", strings.Join(flags, ", "))
	}
	fmt.Fprintln(out)
}

// fenceState renders one fence sector's enabled/triggered pair.
func fenceState(enabled, triggered bool) string {
	switch {
	case triggered:
		return "TRIGGERED"
	case enabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// zoneFlags lists a zone's noteworthy states; quiet wired zones yield
// nothing and stay off the status display.
func zoneFlags(z model.Zone) []string {
	var flags []string
	if z.Open {
		flags = append(flags, "open")
	}
	if z.Violated {
		flags = append(flags, "violated")
	}
	if z.Bypassed {
		flags = append(flags, "bypassed")
	}
	if z.Tamper {
		flags = append(flags, "tamper")
	}
	if z.ShortCircuit {
		flags = append(flags, "short")
	}
	if z.BatteryLow {
		flags = append(flags, "battery-low")
	}
	if z.Wireless {
		flags = append(flags, fmt.Sprintf("wireless (signal %d)", z.SignalStrength))
	}
	return flags
}

// parseArmArgs reads the optional 1-based partition number and the
// "stay" keyword.
func (c *console) parseArmArgs(args []string) (partition *int, stay bool, ok bool) {
	for _, arg := range args {
		if strings.EqualFold(arg, "stay") {
			stay = true
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			fmt.Fprintf(c.rl.Stdout(), "Invalid partition: %s\n", arg)
			return nil, false, false
		}
		idx := n - 1
		partition = &idx
	}
	return partition, stay, true
}

// cmdArm handles the arm command.
func (c *console) cmdArm(ctx context.Context, args []string) {
	sess := c.connected()
	if sess == nil {
		return
	}

	partition, stay, ok := c.parseArmArgs(args)
	if !ok {
		return
	}

	err := sess.Arm(ctx, partition, stay)
	switch {
	case errors.Is(err, session.ErrUnverified):
		fmt.Fprintln(c.rl.Stdout(), "No reply; panels often arm silently. Check with 'status'.")
	case err != nil:
		fmt.Fprintf(c.rl.Stdout(), "Arm failed: %v\n", err)
	default:
		fmt.Fprintln(c.rl.Stdout(), "Armed")
	}
}

// cmdDisarm handles the disarm command.
func (c *console) cmdDisarm(ctx context.Context, args []string) {
	sess := c.connected()
	if sess == nil {
		return
	}

	var partition *int
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintf(c.rl.Stdout(), "Invalid partition: %s\n", args[0])
			return
		}
		idx := n - 1
		partition = &idx
	}

	if err := sess.Disarm(ctx, partition); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Disarm failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Disarmed")
}

// cmdBypass handles the bypass command.
func (c *console) cmdBypass(ctx context.Context, args []string) {
	sess := c.connected()
	if sess == nil {
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: bypass <zones...> on|off")
		fmt.Fprintln(c.rl.Stdout(), "  Example: bypass 1 3 on")
		return
	}

	var bypass bool
	switch strings.ToLower(args[len(args)-1]) {
	case "on":
		bypass = true
	case "off":
		bypass = false
	default:
		fmt.Fprintln(c.rl.Stdout(), "Usage: bypass <zones...> on|off")
		return
	}

	zones := make([]int, 0, len(args)-1)
	for _, arg := range args[:len(args)-1] {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			fmt.Fprintf(c.rl.Stdout(), "Invalid zone: %s\n", arg)
			return
		}
		zones = append(zones, n-1)
	}

	if err := sess.Bypass(ctx, zones, bypass); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Bypass failed: %v\n", err)
		return
	}

	action := "bypassed"
	if !bypass {
		action = "reinstated"
	}
	fmt.Fprintf(c.rl.Stdout(), "Zones %s\n", action)
}

// cmdSirenOff handles the siren-off command.
func (c *console) cmdSirenOff(ctx context.Context) {
	sess := c.connected()
	if sess == nil {
		return
	}

	if err := sess.SirenOff(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Siren-off failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Siren silenced")
}

// cmdFence handles the shock and fence commands.
func (c *console) cmdFence(ctx context.Context, args []string, shock bool) {
	sess := c.connected()
	if sess == nil {
		return
	}

	name := "fence"
	if shock {
		name = "shock"
	}
	if len(args) < 1 {
		fmt.Fprintf(c.rl.Stdout(), "Usage: %s on|off\n", name)
		return
	}

	var on bool
	switch strings.ToLower(args[0]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		fmt.Fprintf(c.rl.Stdout(), "Usage: %s on|off\n", name)
		return
	}

	var err error
	if shock {
		err = sess.FenceShock(ctx, on)
	} else {
		err = sess.FenceAlarm(ctx, on)
	}
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Command failed: %v\n", err)
		return
	}

	state := "on"
	if !on {
		state = "off"
	}
	fmt.Fprintf(c.rl.Stdout(), "Fence %s sector switched %s\n", name, state)
}

// cmdPGM handles the pgm command.
func (c *console) cmdPGM(ctx context.Context, args []string) {
	sess := c.connected()
	if sess == nil {
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: pgm <index> on|off")
		return
	}

	index, err := strconv.Atoi(args[0])
	if err != nil || index < 0 {
		fmt.Fprintf(c.rl.Stdout(), "Invalid PGM index: %s\n", args[0])
		return
	}

	var on bool
	switch strings.ToLower(args[1]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		fmt.Fprintln(c.rl.Stdout(), "Usage: pgm <index> on|off")
		return
	}

	if err := sess.PGM(ctx, index, on); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "PGM failed: %v\n", err)
		return
	}

	state := "on"
	if !on {
		state = "off"
	}
	fmt.Fprintf(c.rl.Stdout(), "PGM %d switched %s\n", index, state)
}

// cmdMAC handles the mac command.
func (c *console) cmdMAC(ctx context.Context) {
	sess := c.connected()
	if sess == nil {
		return
	}

	mac, err := sess.MAC(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "MAC read failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "MAC: %s\n", mac)
}

// cmdKeepAlive handles the keepalive command.
func (c *console) cmdKeepAlive(ctx context.Context) {
	sess := c.connected()
	if sess == nil {
		return
	}

	if err := sess.KeepAlive(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Keep-alive failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Keep-alive acknowledged")
}

// cmdHex handles the hex command.
func (c *console) cmdHex(args []string) {
	var on bool
	if len(args) == 0 {
		on = !c.echo.on.Load()
	} else {
		switch strings.ToLower(args[0]) {
		case "on":
			on = true
		case "off":
			on = false
		default:
			fmt.Fprintln(c.rl.Stdout(), "Usage: hex [on|off]")
			return
		}
	}

	c.echo.on.Store(on)
	if on {
		fmt.Fprintln(c.rl.Stdout(), "Frame hex echo on")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Frame hex echo off")
	}
}

// cmdReplay handles the replay command.
func (c *console) cmdReplay(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: replay <capture-file>")
		return
	}

	reader, err := log.NewReader(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Opening capture failed: %v\n", err)
		return
	}
	defer reader.Close()

	count := 0
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Replay failed: %v\n", err)
			return
		}
		if ev.Frame == nil {
			continue
		}

		arrow := "<-"
		if ev.Direction == log.DirectionOut {
			arrow = "->"
		}
		fmt.Fprintf(c.rl.Stdout(), "%s %s %s %s\n",
			ev.Timestamp.Format("15:04:05.000"), arrow, ev.Frame.Dialect, hex.EncodeToString(ev.Frame.Data))
		count++
	}

	fmt.Fprintf(c.rl.Stdout(), "%d frames\n", count)
}

// frameEcho is a protocol log sink that prints transport frames as hex
// while enabled. Command runs block on the prompt, so frames print in
// order between the command and its result.
type frameEcho struct {
	out io.Writer
	on  atomic.Bool
}

// Log implements log.Logger.
func (e *frameEcho) Log(ev log.Event) {
	if !e.on.Load() || ev.Frame == nil {
		return
	}

	arrow := "<-"
	if ev.Direction == log.DirectionOut {
		arrow = "->"
	}
	fmt.Fprintf(e.out, "%s %s %s\n", arrow, ev.Frame.Dialect, hex.EncodeToString(ev.Frame.Data))
}
