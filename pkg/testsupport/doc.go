// Package testsupport holds helpers shared by the wizard tests: recording
// notifiers, scripted transports, fixture registries and golden files.
package testsupport
