package main

import (
	"fmt"

	flag "github.com/spf13/pflag"
)

var (
	flagPort        int
	flagSTUNAddress string
	flagTURNAddress string
	flagTURNUser    string
	flagTURNPass    string
	flagReliable    bool
	flagControlling bool
	flagIPv6        bool
	flagVerbose     bool
	flagHelp        bool
)

func init() {
	flag.IntVarP(&flagPort, "port", "p", 8000, "HTTP port the local signaling server listens on")
	flag.StringVar(&flagSTUNAddress, "stun", "", "STUN server address (host:port), disables server-reflexive gathering if empty")
	flag.StringVar(&flagTURNAddress, "turn", "", "TURN server address (host:port), disables relay gathering if empty")
	flag.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	flag.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	flag.BoolVar(&flagReliable, "reliable", false, "Layer a pseudo-TCP byte stream over the selected candidate pair")
	flag.BoolVar(&flagControlling, "controlling", false, "Take the controlling ICE role (nominate pairs); the other peer must run without this flag")
	flag.BoolVar(&flagIPv6, "ipv6", false, "Include IPv6 host candidates")
	flag.BoolVarP(&flagVerbose, "verbose", "V", false, "Verbose logging (overrides ICE_LOGLEVEL)")
	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

const helpString = `goiced - ICE/STUN/TURN connectivity demo

Usage: goiced [OPTION]...

Options:
  -p, --port=PORT        HTTP port the local signaling server listens on (default 8000)
      --stun=ADDR         STUN server address (host:port)
      --turn=ADDR         TURN server address (host:port)
      --turn-user=USER    TURN username
      --turn-pass=PASS    TURN password
      --reliable          Layer pseudo-TCP over the selected pair
      --controlling       Take the controlling ICE role
      --ipv6              Include IPv6 host candidates
  -V, --verbose           Verbose logging
  -h, --help              Print this message and exit
`

func help() {
	fmt.Print(helpString)
}
