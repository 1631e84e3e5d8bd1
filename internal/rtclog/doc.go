// Package rtclog is the single logging seam used by every package in this
// module. Verbosity is controlled per-tag via the ICE_LOGLEVEL environment
// variable (the one ambient input the core consults, per spec ?6), e.g.
// ICE_LOGLEVEL=ice=debug,stun=trace.
package rtclog
