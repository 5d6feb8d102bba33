// Command autopilot analyzes a project, plans its refactoring and runs the
// plan with a pool of workers.
package main

func main() {
	Execute()
}
