package batch

// Operation selects what the orchestrator does to each container.
type Operation string

const (
	// OpConfigure runs detect, cleanup when needed, config rewrite and verify.
	OpConfigure Operation = "configure"
	// OpClean runs the cleanup pass only.
	OpClean Operation = "clean"
	// OpVerify runs the verification protocol only.
	OpVerify Operation = "verify"
	// OpRemove strips the managed passthrough block.
	OpRemove Operation = "remove"
	// OpDiagnose reports passthrough state without mutating anything.
	OpDiagnose Operation = "diagnose"
)

// Outcome is one container's result within a batch.
type Outcome struct {
	ID      string
	Name    string
	Op      Operation
	Err     error
	Skipped bool
}

// Confirmer asks the operator whether to continue after a failure.
type Confirmer interface {
	Continue(prompt string) bool
}
