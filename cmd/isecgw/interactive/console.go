// Package interactive provides the interactive console for the ISECNet
// gateway daemon.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/isecnet-bridge/isecnet-go/pkg/events"
	"github.com/isecnet-bridge/isecnet-go/pkg/guardian"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
	"github.com/isecnet-bridge/isecnet-go/pkg/persistence"
	"github.com/isecnet-bridge/isecnet-go/pkg/poller"
	"github.com/isecnet-bridge/isecnet-go/pkg/pool"
	"github.com/isecnet-bridge/isecnet-go/pkg/service"
)

// opTimeout bounds one console-initiated cloud or panel operation.
const opTimeout = 30 * time.Second

// GatewayConfig provides configuration information to the console.
// This interface allows the interactive layer to access daemon settings
// without depending on the main package's config structure.
type GatewayConfig interface {
	// ListenAddr returns the address reserved for the HTTP layer.
	ListenAddr() string

	// StatePath returns the persisted state file path.
	StatePath() string
}

// Gateway bundles the daemon collaborators the console drives.
type Gateway struct {
	Service *service.AlarmService
	Auth    *guardian.Auth
	Cloud   *guardian.Client
	Store   *persistence.Store
	Pool    *pool.Pool
	Bus     *events.Broadcaster
}

// Console handles interactive mode for isecgw.
type Console struct {
	gw     Gateway
	config GatewayConfig
	rl     *readline.Instance

	// Target selection for panel commands.
	mu        sync.Mutex
	sessionID string
	panelID   int64

	// Event streaming.
	sub     *events.Subscriber
	subDone chan struct{}
}

// New creates a new console handler.
func New(gw Gateway, cfg GatewayConfig) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "isecgw> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{gw: gw, config: cfg, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

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
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			c.stopEvents()
			cancel()
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

		case "login":
			c.cmdLogin(ctx, args)

		case "logout":
			c.cmdLogout(args)

		case "panels", "ls":
			c.cmdPanels(ctx)

		case "use":
			c.cmdUse(args)

		case "password", "pw":
			c.cmdPassword(args)

		case "status", "s":
			c.cmdStatus(ctx, false)

		case "full", "f":
			c.cmdStatus(ctx, true)

		case "arm":
			c.cmdArm(ctx, args)

		case "disarm":
			c.cmdDisarm(ctx, args)

		case "siren-off", "siren":
			c.cmdSirenOff(ctx)

		case "bypass":
			c.cmdBypass(ctx, args)

		case "pgm":
			c.cmdPGM(ctx, args)

		case "mac":
			c.cmdMAC(ctx)

		case "events":
			c.cmdEvents(args)

		case "stats":
			c.cmdStats()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			c.stopEvents()
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
ISECNet Gateway Commands:
  Cloud Account:
    login <username>          - Log in to the vendor cloud
    logout                    - Drop the cloud session
    panels                    - List the account's alarm centrals
    use <panel-id>            - Select the panel for later commands
    password <pw>             - Store the selected panel's password

  Panel Control:
    status                    - Read the panel status
    full                      - Read the complete status (wireless detail)
    arm [partition] [stay]    - Arm away, or stay with the keyword
    disarm [partition]        - Disarm
    siren-off                 - Silence the siren
    bypass <zones...> on|off  - Bypass or reinstate zones (1-based)
    pgm <index> on|off        - Drive a PGM output
    mac                       - Read the panel MAC

  General:
    events on|off             - Stream state changes and cloud events
    stats                     - Show store, pool, and subscriber counters
    help                      - Show this help
    quit                      - Stop the gateway`)
}

// session returns the current cloud session id, empty when logged out.
func (c *Console) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// target returns the session and panel for a panel command, printing
// guidance when either is missing.
func (c *Console) target() (string, int64, bool) {
	c.mu.Lock()
	sessionID, panelID := c.sessionID, c.panelID
	c.mu.Unlock()

	if sessionID == "" {
		fmt.Fprintln(c.rl.Stdout(), "Not logged in (use 'login <username>')")
		return "", 0, false
	}
	if panelID == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No panel selected (use 'panels' then 'use <panel-id>')")
		return "", 0, false
	}
	return sessionID, panelID, true
}

// cmdLogin handles the login command.
func (c *Console) cmdLogin(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: login <username>")
		return
	}

	password, err := c.rl.ReadPassword("Password: ")
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Password read failed: %v\n", err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	sess, err := c.gw.Auth.Login(opCtx, args[0], string(password))
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Login failed: %v\n", err)
		return
	}

	c.mu.Lock()
	c.sessionID = sess.ID
	c.mu.Unlock()

	fmt.Fprintf(c.rl.Stdout(), "Logged in, session %s (expires %s)\n",
		shorten(sess.ID), sess.ExpiresAt.Format("2006-01-02 15:04"))
}

// cmdLogout handles the logout command.
func (c *Console) cmdLogout(_ []string) {
	sessionID := c.session()
	if sessionID == "" {
		fmt.Fprintln(c.rl.Stdout(), "Not logged in")
		return
	}

	c.stopEvents()

	if err := c.gw.Auth.Logout(sessionID); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Logout failed: %v\n", err)
		return
	}

	c.mu.Lock()
	c.sessionID = ""
	c.panelID = 0
	c.mu.Unlock()

	fmt.Fprintln(c.rl.Stdout(), "Logged out")
}

// cmdPanels handles the panels command.
func (c *Console) cmdPanels(ctx context.Context) {
	sessionID := c.session()
	if sessionID == "" {
		fmt.Fprintln(c.rl.Stdout(), "Not logged in (use 'login <username>')")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	token, err := c.gw.Auth.ValidToken(opCtx, sessionID)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Session invalid: %v\n", err)
		return
	}

	centrals, err := c.gw.Cloud.AlarmCentrals(opCtx, token)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Listing panels failed: %v\n", err)
		return
	}
	if len(centrals) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No alarm centrals on this account")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nAlarm Centrals (%d):\n", len(centrals))
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	for _, ac := range centrals {
		transport := "cloud"
		if ac.Connections.ReceiverEnabled {
			transport = fmt.Sprintf("receiver (%s:%d)", ac.ReceiverAddr, ac.ReceiverPort)
		}

		fmt.Fprintf(c.rl.Stdout(), "  ID: %d\n", ac.ID)
		fmt.Fprintf(c.rl.Stdout(), "      Name: %s\n", ac.Description)
		fmt.Fprintf(c.rl.Stdout(), "      Model: %s (firmware %s)\n", ac.Model, ac.Firmware)
		fmt.Fprintf(c.rl.Stdout(), "      MAC: %s\n", ac.MAC())
		fmt.Fprintf(c.rl.Stdout(), "      Transport: %s\n", transport)
		fmt.Fprintln(c.rl.Stdout())
	}
}

// cmdUse handles the use command.
func (c *Console) cmdUse(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: use <panel-id>")
		fmt.Fprintln(c.rl.Stdout(), "  Use 'panels' to list panel ids")
		return
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(c.rl.Stdout(), "Invalid panel id: %s\n", args[0])
		return
	}

	c.mu.Lock()
	c.panelID = id
	c.mu.Unlock()

	fmt.Fprintf(c.rl.Stdout(), "Panel %d selected\n", id)
}

// cmdPassword handles the password command.
func (c *Console) cmdPassword(args []string) {
	sessionID, panelID, ok := c.target()
	if !ok {
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: password <panel-password>")
		return
	}

	if err := c.gw.Store.SetDevicePassword(sessionID, panelID, args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Storing password failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Password stored for panel %d\n", panelID)
}

// cmdStatus handles the status and full commands.
func (c *Console) cmdStatus(ctx context.Context, complete bool) {
	sessionID, panelID, ok := c.target()
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		res service.StatusResult
		err error
	)
	if complete {
		res, err = c.gw.Service.GetCompleteStatus(opCtx, sessionID, panelID)
	} else {
		res, err = c.gw.Service.GetStatus(opCtx, sessionID, panelID)
	}
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Status failed: %v\n", err)
		return
	}

	c.printStatus(res)
}

// printStatus renders a status read as an aligned block.
func (c *Console) printStatus(res service.StatusResult) {
	out := c.rl.Stdout()

	fmt.Fprintln(out, "\nPanel Status")
	fmt.Fprintln(out, "-------------------------------------------")
	if res.ConnectionUnavailable {
		fmt.Fprintln(out, "  (panel unreachable, serving last known state)")
	}
	fmt.Fprintf(out, "  Model:      %s\n", res.ModelName)
	if res.MAC != "" {
		fmt.Fprintf(out, "  MAC:        %s\n", res.MAC)
	}
	fmt.Fprintf(out, "  Mode:       %s\n", res.Mode)
	fmt.Fprintf(out, "  Triggered:  %v\n", res.Triggered)
	fmt.Fprintf(out, "  Siren:      %v\n", res.Siren)
	if res.Battery > 0 {
		fmt.Fprintf(out, "  Battery:    0x%02X\n", res.Battery)
	}
	if res.Fence != nil {
		fmt.Fprintf(out, "  Shock:      %s\n", fenceState(res.Fence.ShockEnabled, res.Fence.ShockTriggered))
		fmt.Fprintf(out, "  Fence:      %s\n", fenceState(res.Fence.AlarmEnabled, res.Fence.AlarmTriggered))
	}

	if res.PartitionsEnabled && len(res.Partitions) > 0 {
		fmt.Fprintln(out, "  Partitions:")
		for _, p := range res.Partitions {
			fmt.Fprintf(out, "    %d: %s\n", p.Index+1, p.State)
		}
	}

	open := 0
	for _, z := range res.Zones {
		if z.Open {
			open++
		}
	}
	fmt.Fprintf(out, "  Zones:      %d (%d open)\n", len(res.Zones), open)
	for _, z := range res.Zones {
		flags := zoneFlags(z)
		if len(flags) == 0 {
			continue
		}
		fmt.Fprintf(out, "    %-10s %s\n", z.Name+":", strings.Join(flags, ", "))
	}

	if !res.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "  Updated:    %s\n", res.UpdatedAt.Format(time.RFC3339))
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

// cmdArm handles the arm command.
func (c *Console) cmdArm(ctx context.Context, args []string) {
	sessionID, panelID, ok := c.target()
	if !ok {
		return
	}

	mode := model.ModeArmedAway
	var partitionID *int64
	for _, arg := range args {
		if strings.EqualFold(arg, "stay") {
			mode = model.ModeArmedStay
			continue
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid partition: %s\n", arg)
			return
		}
		partitionID = &id
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	got, err := c.gw.Service.Arm(opCtx, sessionID, panelID, mode, partitionID)
	if err != nil {
		c.printArmError(err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Panel now %s\n", got)
}

// printArmError renders arm failures, listing open zones when the
// panel named them.
func (c *Console) printArmError(err error) {
	var openZones *service.OpenZonesError
	if errors.As(err, &openZones) {
		fmt.Fprintln(c.rl.Stdout(), "Cannot arm, open zones:")
		if len(openZones.Zones) == 0 {
			fmt.Fprintln(c.rl.Stdout(), "  (panel did not list them)")
			return
		}
		for _, z := range openZones.Zones {
			name := z.Name
			if z.FriendlyName != "" {
				name = fmt.Sprintf("%s (%s)", z.Name, z.FriendlyName)
			}
			fmt.Fprintf(c.rl.Stdout(), "  %s\n", name)
		}
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Arm failed: %v\n", err)
}

// cmdDisarm handles the disarm command.
func (c *Console) cmdDisarm(ctx context.Context, args []string) {
	sessionID, panelID, ok := c.target()
	if !ok {
		return
	}

	var partitionID *int64
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid partition: %s\n", args[0])
			return
		}
		partitionID = &id
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	got, err := c.gw.Service.Disarm(opCtx, sessionID, panelID, partitionID)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Disarm failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Panel now %s\n", got)
}

// cmdSirenOff handles the siren-off command.
func (c *Console) cmdSirenOff(ctx context.Context) {
	sessionID, panelID, ok := c.target()
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	got, err := c.gw.Service.SirenOff(opCtx, sessionID, panelID)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Siren-off failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Siren silenced (panel %s)\n", got)
}

// cmdBypass handles the bypass command.
func (c *Console) cmdBypass(ctx context.Context, args []string) {
	sessionID, panelID, ok := c.target()
	if !ok {
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

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.gw.Service.BypassZones(opCtx, sessionID, panelID, zones, bypass); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Bypass failed: %v\n", err)
		return
	}

	action := "bypassed"
	if !bypass {
		action = "reinstated"
	}
	fmt.Fprintf(c.rl.Stdout(), "Zones %s\n", action)
}

// cmdPGM handles the pgm command.
func (c *Console) cmdPGM(ctx context.Context, args []string) {
	sessionID, panelID, ok := c.target()
	if !ok {
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

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.gw.Service.PGM(opCtx, sessionID, panelID, index, on); err != nil {
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
func (c *Console) cmdMAC(ctx context.Context) {
	sessionID, panelID, ok := c.target()
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	mac, err := c.gw.Service.PanelMAC(opCtx, sessionID, panelID)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "MAC read failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "MAC: %s\n", mac)
}

// cmdEvents handles the events command.
func (c *Console) cmdEvents(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: events on|off")
		return
	}

	switch strings.ToLower(args[0]) {
	case "on":
		c.startEvents()
	case "off":
		if c.stopEvents() {
			fmt.Fprintln(c.rl.Stdout(), "Event stream stopped")
		} else {
			fmt.Fprintln(c.rl.Stdout(), "Event stream not running")
		}
	default:
		fmt.Fprintln(c.rl.Stdout(), "Usage: events on|off")
	}
}

// startEvents subscribes to the broadcaster and prints events above the
// prompt until stopped. Subscribing also starts the cloud poller.
func (c *Console) startEvents() {
	sessionID := c.session()
	if sessionID == "" {
		fmt.Fprintln(c.rl.Stdout(), "Not logged in (use 'login <username>')")
		return
	}

	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		fmt.Fprintln(c.rl.Stdout(), "Event stream already running")
		return
	}
	sub := c.gw.Bus.Subscribe(sessionID)
	done := make(chan struct{})
	c.sub, c.subDone = sub, done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for ev := range sub.Events() {
			c.printEvent(ev)
		}
	}()

	fmt.Fprintln(c.rl.Stdout(), "Event stream started")
}

// stopEvents tears down the subscription. It reports whether a stream
// was running.
func (c *Console) stopEvents() bool {
	c.mu.Lock()
	sub, done := c.sub, c.subDone
	c.sub, c.subDone = nil, nil
	c.mu.Unlock()

	if sub == nil {
		return false
	}

	// Unsubscribe closes the event channel, which ends the printer.
	c.gw.Bus.Unsubscribe(sub.ID)
	<-done
	return true
}

// printEvent renders one broadcast event above the prompt.
func (c *Console) printEvent(ev events.Event) {
	out := c.rl.Stdout()
	stamp := time.Now().Format("15:04:05")

	switch data := ev.Data.(type) {
	case events.StateChange:
		target := fmt.Sprintf("panel %d", data.DeviceID)
		if data.PartitionID != nil {
			target = fmt.Sprintf("panel %d partition %d", data.DeviceID, *data.PartitionID)
		}
		fmt.Fprintf(out, "\n[%s] %s: %s -> %s (%s)\n", stamp, ev.Type, target, data.NewStatus, data.Source)

	case poller.AlarmEvent:
		detail := data.EventName
		if data.Zone != nil {
			name := data.Zone.Name
			if data.Zone.FriendlyName != "" {
				name = data.Zone.FriendlyName
			}
			detail = fmt.Sprintf("%s (%s)", detail, name)
		}
		fmt.Fprintf(out, "\n[%s] %s: panel %d %s [%s]\n", stamp, ev.Type, data.DeviceID, detail, data.Severity)

	default:
		fmt.Fprintf(out, "\n[%s] %s: %v\n", stamp, ev.Type, ev.Data)
	}

	c.rl.Refresh()
}

// cmdStats handles the stats command.
func (c *Console) cmdStats() {
	out := c.rl.Stdout()
	storeStats := c.gw.Store.Stats()
	poolStats := c.gw.Pool.Stats()

	fmt.Fprintln(out, "\nGateway Status")
	fmt.Fprintln(out, "-------------------------------------------")
	fmt.Fprintf(out, "  Listen:             %s\n", c.config.ListenAddr())
	fmt.Fprintf(out, "  State file:         %s\n", c.config.StatePath())

	if info, ok := c.gw.Auth.SessionInfo(c.session()); ok {
		fmt.Fprintf(out, "  Cloud session:      %s (valid: %v)\n", shorten(info.SessionID), info.Valid)
	} else {
		fmt.Fprintln(out, "  Cloud session:      none")
	}

	c.mu.Lock()
	panelID := c.panelID
	c.mu.Unlock()
	if panelID != 0 {
		fmt.Fprintf(out, "  Selected panel:     %d\n", panelID)
	}

	fmt.Fprintf(out, "  Stored sessions:    %d\n", storeStats.Tokens)
	fmt.Fprintf(out, "  Saved passwords:    %d\n", storeStats.Passwords)
	fmt.Fprintf(out, "  Cached descriptors: %d\n", storeStats.ConnectionInfos)
	fmt.Fprintf(out, "  Known snapshots:    %d\n", storeStats.LastKnown)
	fmt.Fprintf(out, "  Panel sessions:     %d\n", poolStats.Sessions)

	if len(poolStats.Stages) > 0 {
		ids := make([]int64, 0, len(poolStats.Stages))
		for id := range poolStats.Stages {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Fprintf(out, "    panel %d: %s\n", id, poolStats.Stages[id])
		}
	}

	fmt.Fprintf(out, "  Subscribers:        %d\n", c.gw.Bus.SubscriberCount())
	fmt.Fprintln(out)
}

// shorten returns the first 8 characters of an identifier.
func shorten(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
