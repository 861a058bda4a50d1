// Package audithook is an extension that turns reminder campaign events
// into an audit trail: which reminder went to which subscription, which
// were skipped, and which runs or timers failed for good.
//
// Events go through a [Recorder]. [NewSlogRecorder] writes them as
// structured log records; any other backend plugs in with [RecorderFunc].
//
//	audithook.New(audithook.NewSlogRecorder(logger),
//	    audithook.WithActions(
//	        audithook.ActionReminderSent,
//	        audithook.ActionReminderSkipped,
//	        audithook.ActionWorkflowFailed,
//	    ),
//	)
package audithook
