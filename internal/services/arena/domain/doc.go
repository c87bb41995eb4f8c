// Package domain holds the arena game model: sessions, rounds, steps,
// judgments, and the pure turn-ordering rules that decide which participant
// acts next. Nothing in this package performs I/O; state transitions are
// validated here and executed by the engine package.
package domain
