// Package batch drives passthrough operations across a selected set of
// containers, one at a time. Containers are fully independent: a failure
// is reported and, when more remain, the operator decides whether the
// batch continues.
package batch

import (
	"fmt"

	"gpubridge/internal/cleanup"
	"gpubridge/internal/detect"
	"gpubridge/internal/errdefs"
	"gpubridge/internal/hostgpu"
	"gpubridge/internal/logging"
	"gpubridge/internal/lxcconf"
	"gpubridge/internal/pct"
	"gpubridge/internal/verify"
)

// Deps are the pipeline components the orchestrator drives.
type Deps struct {
	Client    pct.Client
	Scanner   *hostgpu.Scanner
	Resolver  *hostgpu.Resolver
	Detector  *detect.Detector
	Cleaner   *cleanup.Engine
	Rewriter  *lxcconf.Rewriter
	Verifier  *verify.Verifier
	Libraries []string
	Confirm   Confirmer
	Console   *logging.Console
	Logger    *logging.Logger
}

// Orchestrator processes containers strictly sequentially; one container
// is fully handled before the next begins.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator creates a batch orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Run applies the operation to every container in order. A fatal host
// precondition (empty device inventory) aborts before any container is
// touched; per-container failures are contained to that container.
func (o *Orchestrator) Run(op Operation, records []pct.ContainerRecord) ([]Outcome, error) {
	var inv hostgpu.Inventory
	var mappings []hostgpu.Mapping

	if op == OpConfigure || op == OpVerify {
		var err error
		inv, err = o.deps.Scanner.Scan()
		if err != nil {
			o.deps.Console.Error("Host device inventory is empty, aborting: %v", err)
			return nil, err
		}
		o.deps.Console.Info("Host inventory: %d device nodes", len(inv.Devices))
	}

	if op == OpConfigure {
		mappings = o.deps.Resolver.Resolve(o.deps.Libraries)
		if len(mappings) < len(o.deps.Libraries) {
			o.deps.Console.Warn("Resolved %d of %d required libraries, passthrough may have reduced functionality",
				len(mappings), len(o.deps.Libraries))
		}
	}

	outcomes := make([]Outcome, 0, len(records))
	cancelled := false

	for i, record := range records {
		outcome := Outcome{ID: record.ID, Name: record.Name, Op: op}

		if cancelled {
			outcome.Skipped = true
			outcome.Err = errdefs.ErrUserCancelled
			outcomes = append(outcomes, outcome)
			continue
		}

		o.deps.Console.Info("Container %s (%s): starting %s", record.ID, record.Name, op)
		outcome.Err = o.runOne(op, record, inv, mappings)

		if outcome.Err != nil {
			o.deps.Console.Error("Container %s: %s failed: %v", record.ID, op, outcome.Err)
			o.deps.Logger.Error("batch.container_failed", "Operation failed for container", map[string]interface{}{
				"container": record.ID,
				"operation": string(op),
				"error":     outcome.Err.Error(),
			})

			if i < len(records)-1 && !o.deps.Confirm.Continue("Continue with remaining containers?") {
				cancelled = true
				o.deps.Console.Warn("Batch cancelled, skipping remaining containers")
			}
		} else {
			o.deps.Console.Success("Container %s: %s completed", record.ID, op)
		}

		outcomes = append(outcomes, outcome)
	}

	o.summarize(outcomes)
	return outcomes, nil
}

func (o *Orchestrator) runOne(op Operation, record pct.ContainerRecord, inv hostgpu.Inventory, mappings []hostgpu.Mapping) error {
	switch op {
	case OpConfigure:
		return o.configureOne(record.ID, inv, mappings)
	case OpClean:
		return o.cleanOne(record.ID)
	case OpVerify:
		return o.verifyOne(record.ID, inv.PrimaryDevice())
	case OpRemove:
		return o.deps.Rewriter.Strip(record.ID)
	case OpDiagnose:
		return o.diagnoseOne(record)
	}
	return fmt.Errorf("unknown operation %q", op)
}

// configureOne is the full per-container pipeline: detect, clean when
// dirty, rewrite the configuration document, then verify.
func (o *Orchestrator) configureOne(id string, inv hostgpu.Inventory, mappings []hostgpu.Mapping) error {
	if err := o.ensureRunning(id); err != nil {
		return err
	}

	report, err := o.deps.Detector.Scan(id)
	if err != nil {
		return err
	}

	if report.Conflict {
		o.deps.Console.Warn("Container %s has conflicting components (%s: %s), cleaning",
			id, report.Category, report.Evidence)
		if err := o.cleanOne(id); err != nil {
			return err
		}
	}

	if err := o.deps.Rewriter.Apply(id, inv, mappings); err != nil {
		return err
	}
	o.deps.Console.Info("Container %s: passthrough block written", id)

	return o.verifyOne(id, inv.PrimaryDevice())
}

func (o *Orchestrator) cleanOne(id string) error {
	log, err := o.deps.Cleaner.Clean(id)
	if err != nil {
		return err
	}
	if log.Skipped {
		o.deps.Console.Info("Container %s: already clean", id)
		return nil
	}
	if log.Residual > 0 {
		o.deps.Console.Warn("Container %s: %d vendor files remain after cleanup (harmless leftovers)", id, log.Residual)
	}
	o.deps.Console.Info("Container %s: removed %d items (%d step errors)", id, len(log.RemovedItems), len(log.Errors))
	return nil
}

// verifyOne gates the functional probe on the inventory's primary device.
func (o *Orchestrator) verifyOne(id, device string) error {
	if device == "" {
		return fmt.Errorf("host inventory has no primary device node")
	}
	result, err := o.deps.Verifier.Verify(id, device)
	if err != nil {
		return err
	}
	if result.RemediationAttempted {
		o.deps.Console.Warn("Container %s: remediation was attempted", id)
	}
	if !result.Succeeded {
		return fmt.Errorf("verification failed: %s", result.ErrorMessage)
	}
	return nil
}

func (o *Orchestrator) diagnoseOne(record pct.ContainerRecord) error {
	managed, err := o.deps.Rewriter.IsManaged(record.ID)
	if err != nil {
		return err
	}

	state := "unmanaged"
	if managed {
		state = "managed"
	}
	o.deps.Console.Info("Container %s (%s): %s, passthrough %s", record.ID, record.Name, record.Status, state)

	if record.Status != pct.StatusRunning {
		o.deps.Console.Info("Container %s: stopped, skipping component scan", record.ID)
		return nil
	}

	report, err := o.deps.Detector.Scan(record.ID)
	if err != nil {
		return err
	}
	if report.Conflict {
		o.deps.Console.Warn("Container %s: conflicting %s found (%s)", record.ID, report.Category, report.Evidence)
	} else {
		o.deps.Console.Success("Container %s: no conflicting components", record.ID)
	}
	return nil
}

func (o *Orchestrator) ensureRunning(id string) error {
	status, err := o.deps.Client.Status(id)
	if err != nil {
		return fmt.Errorf("cannot query container %s: %w", id, err)
	}
	if status == pct.StatusRunning {
		return nil
	}
	o.deps.Console.Info("Container %s: starting for inspection", id)
	return o.deps.Client.Start(id)
}

// summarize prints the per-container outcome table closing every batch.
func (o *Orchestrator) summarize(outcomes []Outcome) {
	succeeded, failed, skipped := 0, 0, 0
	for _, outcome := range outcomes {
		switch {
		case outcome.Skipped:
			skipped++
		case outcome.Err != nil:
			failed++
		default:
			succeeded++
		}
	}

	o.deps.Console.Info("Batch summary: %d succeeded, %d failed, %d skipped", succeeded, failed, skipped)
	for _, outcome := range outcomes {
		switch {
		case outcome.Skipped:
			o.deps.Console.Warn("  %s (%s): skipped", outcome.ID, outcome.Name)
		case outcome.Err != nil:
			o.deps.Console.Error("  %s (%s): %v", outcome.ID, outcome.Name, outcome.Err)
		default:
			o.deps.Console.Success("  %s (%s): ok", outcome.ID, outcome.Name)
		}
	}
}
