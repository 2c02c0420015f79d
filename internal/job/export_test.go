package job

// FailureRecorded reports whether a batch failure has been recorded.
func (j *Job) FailureRecorded() bool {
	return j.failure.Load() != nil
}
