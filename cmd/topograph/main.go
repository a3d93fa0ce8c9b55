// Topograph - declarative AWS topology builder
// Load. Synthesize. Reconcile.
package main

func main() {
	Execute()
}
