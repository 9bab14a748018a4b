// Command isecctl is an interactive console that speaks ISECNet
// directly to one alarm panel.
//
// It bypasses the gateway's cloud account plumbing: the panel is
// addressed by flags, the connection is held open across commands, and
// every frame can be echoed as hex or written to a capture file. Use it
// to probe a panel on the bench, to verify receiver endpoints, and to
// record captures for later analysis with iseclog.
//
// Usage:
//
//	isecctl [flags]
//
// Flags:
//
//	-mode string      Transport: cloud or receiver (default "cloud")
//	-host string      Relay or receiver host (cloud defaults to the vendor relay)
//	-port int         Relay or receiver port (default 9009)
//	-mac string       Panel MAC, required in cloud mode (colons optional)
//	-account string   Receiver account, required in receiver mode
//	-password string  Panel password; prompted on connect when empty
//	-capture string   Write protocol captures to this file
//	-version          Print the version and exit
//
// Examples:
//
//	# Talk to a panel through the vendor relay
//	isecctl -mac 11:22:33:AA:BB:CC -password 1234
//
//	# Talk to a panel's IP receiver directly, recording a capture
//	isecctl -mode receiver -host 10.0.0.8 -port 9009 -account 0042 -capture bench.capture
//
// Interactive Commands:
//
//	connect                  - Dial the panel and run the handshake
//	disconnect               - Tear the connection down
//	status                   - Read the partial status
//	full                     - Read the complete status (wireless detail)
//	arm [partition] [stay]   - Arm away, or stay with the keyword
//	disarm [partition]       - Disarm
//	bypass <zones...> on|off - Bypass or reinstate zones (1-based)
//	siren-off                - Silence the siren
//	shock on|off             - Switch the fence shock sector
//	fence on|off             - Switch the fence alarm sector
//	pgm <index> on|off       - Drive a PGM output
//	mac                      - Read the panel MAC
//	keepalive                - Ping the relay
//	hex [on|off]             - Toggle frame hex echo
//	replay <file>            - Print the frames of a capture file
//	quit                     - Exit the console
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/isecnet-bridge/isecnet-go/pkg/log"
	"github.com/isecnet-bridge/isecnet-go/pkg/model"
	"github.com/isecnet-bridge/isecnet-go/pkg/session"
	"github.com/isecnet-bridge/isecnet-go/pkg/version"
)

// Config holds the console configuration.
type Config struct {
	Mode        string
	Host        string
	Port        int
	MAC         string
	Account     string
	Password    string
	Capture     string
	ShowVersion bool
}

var config Config

func init() {
	flag.StringVar(&config.Mode, "mode", "cloud", "Transport: cloud or receiver")
	flag.StringVar(&config.Host, "host", "", "Relay or receiver host")
	flag.IntVar(&config.Port, "port", 9009, "Relay or receiver port")
	flag.StringVar(&config.MAC, "mac", "", "Panel MAC, required in cloud mode")
	flag.StringVar(&config.Account, "account", "", "Receiver account, required in receiver mode")
	flag.StringVar(&config.Password, "password", "", "Panel password; prompted on connect when empty")
	flag.StringVar(&config.Capture, "capture", "", "Write protocol captures to this file")
	flag.BoolVar(&config.ShowVersion, "version", false, "Print the version and exit")
}

func main() {
	flag.Parse()

	if config.ShowVersion {
		fmt.Println("isecctl " + version.String())
		return
	}

	info, err := connectionInfo(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "isecctl: %v\n", err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "isecctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "isecctl: failed to create readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	echo := &frameEcho{out: rl.Stdout()}
	sinks := []log.Logger{echo}

	var capture *log.FileLogger
	if config.Capture != "" {
		capture, err = log.NewFileLogger(config.Capture)
		if err != nil {
			fmt.Fprintf(os.Stderr, "isecctl: opening capture file: %v\n", err)
			os.Exit(1)
		}
		defer capture.Close()
		fmt.Fprintf(rl.Stdout(), "Recording protocol capture to %s\n", config.Capture)
		sinks = append(sinks, capture)
	}

	sessionCfg := session.DefaultConfig()
	if config.Host != "" && info.Mode == model.TransportCloud {
		sessionCfg.RelayAddrs = []string{net.JoinHostPort(config.Host, strconv.Itoa(config.Port))}
	}
	sessionCfg.Logger = log.NewMultiLogger(sinks...)

	c := &console{
		rl:       rl,
		cfg:      sessionCfg,
		info:     info,
		password: config.Password,
		echo:     echo,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.run(ctx, cancel)
}

// connectionInfo translates the flags into a connection descriptor.
func connectionInfo(cfg Config) (model.ConnectionInfo, error) {
	switch strings.ToLower(cfg.Mode) {
	case "cloud":
		mac := model.NormalizeMAC(cfg.MAC)
		if len(mac) != 12 {
			return model.ConnectionInfo{}, fmt.Errorf("cloud mode needs -mac with 12 hex digits, got %q", cfg.MAC)
		}
		return model.ConnectionInfo{MAC: mac, Mode: model.TransportCloud}, nil

	case "receiver":
		if cfg.Host == "" || cfg.Account == "" {
			return model.ConnectionInfo{}, errors.New("receiver mode needs -host and -account")
		}
		return model.ConnectionInfo{
			Mode:            model.TransportIPReceiver,
			ReceiverHost:    cfg.Host,
			ReceiverPort:    cfg.Port,
			ReceiverAccount: cfg.Account,
		}, nil

	default:
		return model.ConnectionInfo{}, fmt.Errorf("unknown mode: %s (use: cloud, receiver)", cfg.Mode)
	}
}
