// Package framework provides the tick-driven control loop and the
// runner used to start and stop the vehicle's components.
package framework
