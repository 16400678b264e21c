// Package bootstrap carries the default rig, used when labrig is invoked
// without a rig path.
package bootstrap

import _ "embed"

// Filename is the name the embedded rig is reported under in diagnostics
// and step source attribution.
const Filename = "builtin/rig.hcl"

//go:embed rig.hcl
var rig []byte

// Rig returns the embedded default rig source.
func Rig() []byte {
	out := make([]byte, len(rig))
	copy(out, rig)
	return out
}
