// Package keygen supplies the unlock response for a device challenge.
//
// The key derivation itself is not implemented here. A Solver is either a
// plain function, an external program (CommandSolver) or a remote key
// service reached over MQTT (MQTTSolver). Workflows treat every Solver as
// deterministic and free of side effects.
package keygen
