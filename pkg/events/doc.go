// Package events delivers raw input notifications (pointer motion, buttons, wheel and keys)
// from either the macOS Quartz event tap (with Accessibility approval) or a deterministic
// synthetic source for non-darwin platforms and automated tests.
package events
