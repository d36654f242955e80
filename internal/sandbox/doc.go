// Package sandbox wraps goja runtimes with the security controls needed to
// run untrusted plugin scripts: dangerous globals removed, per-call
// interrupts, and a narrow host API (console, namespaced store).
package sandbox
