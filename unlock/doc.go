// Package unlock implements the Sierra Wireless EM7455 engineering-mode
// workflows on top of a modem.Modem.
//
// # Workflows
//
//   - Unlock                 enter engineering mode and answer the OPENLOCK challenge
//   - RepairIMEI             unlock, write a new IMEI to NV memory and verify it
//   - RestoreGenericProfile  switch USB identifiers and carrier profile to generic
//   - USBInfo                read the current USB identifiers and carrier profile
//
// Every run starts Idle and only moves forward. The first command that is not
// answered with OK ends the run in the Failed state. Failures are returned as
// a Result naming the reason, the step and the error class, never as a panic
// or a bare boolean.
//
// # Partial failures
//
// There is no rollback. Once the NV IMEI area has been unlocked, a failure
// leaves the stored IMEI undefined and the Result is marked Unsafe so that an
// operator knows the device needs attention.
package unlock
