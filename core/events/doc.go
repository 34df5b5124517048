// Package events defines the calibration events emitted on the event bus.
//
// Available event types:
//   - RunStarted: a calibration run begins
//   - MemberFitted: one ensemble member converged or hit a limit
//   - MemberFailed: one ensemble member could not be fitted
//   - RunCompleted: all members have been processed
package events
