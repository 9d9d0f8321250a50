package pipeline

// Step models a step in the pipeline. It will be a pointer to one of:
//   - CommandStep
//   - BlockStep
//   - WaitStep
//
// The variants share no behaviour beyond ordering, so this is a closed sum
// type: the unexported method prevents other packages from adding step kinds.
type Step interface {
	stepTag() // allow only the step types above

	selfInterpolater
}
