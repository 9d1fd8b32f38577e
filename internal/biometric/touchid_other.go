//go:build !darwin

package biometric

// Platform returns the native gate for this host. Only macOS has one.
func Platform() Gate { return Unavailable{} }
