// Package job defines the queue job model: the undecoded Envelope, the
// validated StreamJob and TransformJob variants, and the StatusReport bodies
// sent back to the queue owner.
//
// Validate is the only way to obtain a typed job. It reports every field
// problem at once through ValidationError, which unwraps to
// services.ErrValidation.
package job
