package piperuntime

import "github.com/blockberries/x07/pkg/hostcap"

// Host bundles the capability interfaces a Plan may need. Only the fields
// a particular Plan's source, chain and sink actually touch need to be
// non-nil; Run returns cfg_invalid if a Plan references a capability Host
// doesn't carry.
type Host struct {
	FS   hostcap.FS
	Net  hostcap.Net
	DB   hostcap.DB
	RR   hostcap.RR
	JSON hostcap.JSONCanon
}
