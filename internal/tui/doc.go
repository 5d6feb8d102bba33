// Package tui provides the live dashboard shown by "autopilot run --tui".
//
// The dashboard polls the orchestrator for metrics at the configured
// refresh rate and follows its event stream for the activity log. It
// can pause and resume assignment and submit ad-hoc tasks:
//
//	p to pause or resume
//	a to type a task, e.g. "fix: tidy imports @main.go !high"
//	q or Ctrl+C to quit
//
// Usage:
//
//	program, _ := tui.NewProgram(orch, tui.Options{RefreshRate: 250 * time.Millisecond})
//	go tui.Forward(ctx, program, orch.Events())
//	program.Run()
package tui
