// Package pipeline implements the wheelhouse pipeline declaration format
// (typically in YAML form): an ordered sequence of steps, where each step is
// either a manual gate (block), a barrier (wait), or a command step that may
// declare a build matrix.
//
// The object model has these caveats:
//   - It normalises: unmarshaling accepts a variety of step forms ("command"
//     vs "commands", "label" vs "name", scalar vs mapping steps), but
//     marshaling back out produces normalised output. An unmarshal/marshal
//     round-trip may produce different text for the same declaration.
//   - Unknown mapping keys are preserved in RemainingFields so they at least
//     survive a round-trip.
//
// The declaration is loaded once per run and never mutated afterwards;
// Expand returns a fresh pipeline rather than rewriting the input.
package pipeline
