package stun

import "github.com/lanikai/goice/internal/rtclog"

var log = rtclog.DefaultLogger.WithTag("stun")
