package config

type WorkerKeyStruct struct {
	WritingFeedbackQueue string
	// WritingFeedbackDeadQueue keeps jobs that exhausted their retries.
	WritingFeedbackDeadQueue string
}

var WorkerKey = &WorkerKeyStruct{
	WritingFeedbackQueue:     "writing_feedback_queue",
	WritingFeedbackDeadQueue: "writing_feedback_dead_queue",
}
