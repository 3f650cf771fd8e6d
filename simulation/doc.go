// Package simulation orchestrates a complete role-play session: intake of
// the trainee, the dialogue loop against the simulated patient, and the
// closing debrief evaluation.
//
// The Simulation owns no model or storage logic of its own. It wires a
// credential rotator, a retry-hardened invoker, a transcript store, a session
// registry and a scenario into the three-phase lifecycle defined by
// core.Session, and enforces the phase rules: intake first, dialogue until
// the window is long enough, then exactly one successful debrief.
package simulation
