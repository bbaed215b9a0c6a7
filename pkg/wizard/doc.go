// Package wizard runs one multi-step form session.
//
// A Session owns the field values, attachments and navigation state of a
// single wizard instance. Steps are zero-based. The session moves through
//
//	Editing(step 0..N-1) -> Reviewing -> Submitting -> Succeeded | Failed
//
// plus AwaitingAuth when the submission needs a (fresh) credential. Forward
// navigation requires the current step to be valid; backward navigation is
// always allowed. Changing the discriminator field re-resolves the schema,
// prunes values the new schema does not declare and rewinds to the step
// holding the discriminator, all under one lock.
package wizard
