// Package selftest runs an operator-triggered end-to-end diagnostic against
// a throwaway property: add, list, upload a probe file, duplicate check,
// archive, unarchive, delete, verify gone. The report deliberately carries
// raw error text; it is an operator surface, not an end-user one.
package selftest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inmodocs/inmodocs-bot/internal/category"
	"github.com/inmodocs/inmodocs-bot/internal/property"
)

// StepTimeout bounds every individual check.
const StepTimeout = 5 * time.Second

const probeFileName = "selftest_probe.txt"

// StepResult is the outcome of one check.
type StepResult struct {
	Name string
	Err  error
}

// Report is the full diagnostic outcome.
type Report struct {
	Address string
	Steps   []StepResult
	// CleanupFailed flags that the throwaway property could not be removed
	// after a failure; the address needs manual cleanup.
	CleanupFailed bool
}

// OK reports whether every step passed.
func (r Report) OK() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// String renders the chat-ready report.
func (r Report) String() string {
	lines := []string{"🧪 Self-test (" + r.Address + ")"}
	for _, s := range r.Steps {
		if s.Err != nil {
			lines = append(lines, fmt.Sprintf("❌ %s: %v", s.Name, s.Err))
		} else {
			lines = append(lines, "✅ "+s.Name)
		}
	}
	if r.OK() {
		lines = append(lines, "Todo correcto.")
	}
	if r.CleanupFailed {
		lines = append(lines, fmt.Sprintf("⚠️ Limpieza fallida: elimina manualmente la propiedad %q.", r.Address))
	}
	return strings.Join(lines, "\n")
}

// Runner orchestrates the diagnostic.
type Runner struct {
	props       *property.Service
	stepTimeout time.Duration
	now         func() time.Time
}

// New returns a runner with the default step timeout.
func New(props *property.Service) *Runner {
	return &Runner{props: props, stepTimeout: StepTimeout, now: time.Now}
}

// step runs one check under its own deadline and records the outcome.
// Returns false on failure, which stops the run.
func (r *Runner) step(ctx context.Context, rep *Report, name string, fn func(context.Context) error) bool {
	sctx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	err := fn(sctx)
	rep.Steps = append(rep.Steps, StepResult{Name: name, Err: err})
	if err != nil {
		log.Error().Err(err).Str("step", name).Msg("Self-test step failed")
	}
	return err == nil
}

// outcome folds a business result into a step error.
func outcome(res property.Result, err error) error {
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}

// Run executes the full diagnostic. On failure after the test property was
// created, it attempts a best-effort delete of the property.
func (r *Runner) Run(ctx context.Context) Report {
	address := fmt.Sprintf("Self-Test-%d", r.now().Unix())
	rep := Report{Address: address}

	var (
		norm     string
		folderID string
		created  bool
	)

	ok := r.step(ctx, &rep, "alta de propiedad", func(ctx context.Context) error {
		res, err := r.props.Add(ctx, address)
		if err != nil {
			return err
		}
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}
		norm = res.Property.NormalizedAddress
		folderID = res.Property.PropertyFolderID
		created = true
		return nil
	})

	ok = ok && r.step(ctx, &rep, "listado de propiedades", func(ctx context.Context) error {
		res, err := r.props.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range res.Properties {
			if p.NormalizedAddress == norm {
				return nil
			}
		}
		return fmt.Errorf("la propiedad %q no aparece en el listado", norm)
	})

	var probeFolderID string
	ok = ok && r.step(ctx, &rep, "subida de archivo de prueba", func(ctx context.Context) error {
		path, err := category.FolderPath(category.Otros, "")
		if err != nil {
			return err
		}
		probeFolderID, err = r.props.Drive().ResolveCategoryFolderID(ctx, folderID, path)
		if err != nil {
			return err
		}
		_, err = r.props.Drive().UploadBuffer(ctx, probeFolderID, probeFileName, "text/plain",
			[]byte("inmodocs self-test probe"))
		return err
	})

	ok = ok && r.step(ctx, &rep, "detección de duplicados", func(ctx context.Context) error {
		existing, err := r.props.Drive().CheckMultipleFilesExist(ctx, []string{probeFileName}, probeFolderID)
		if err != nil {
			return err
		}
		if len(existing) != 1 || existing[0] != probeFileName {
			return fmt.Errorf("se esperaba [%s], se obtuvo %v", probeFileName, existing)
		}
		return nil
	})

	ok = ok && r.step(ctx, &rep, "archivado", func(ctx context.Context) error {
		return outcome(r.props.Archive(ctx, norm))
	})

	ok = ok && r.step(ctx, &rep, "desarchivado", func(ctx context.Context) error {
		return outcome(r.props.Unarchive(ctx, norm))
	})

	ok = ok && r.step(ctx, &rep, "borrado", func(ctx context.Context) error {
		if err := outcome(r.props.Delete(ctx, norm)); err != nil {
			return err
		}
		created = false
		return nil
	})

	ok = ok && r.step(ctx, &rep, "verificación del borrado", func(ctx context.Context) error {
		active, err := r.props.List(ctx)
		if err != nil {
			return err
		}
		archived, err := r.props.ListArchived(ctx)
		if err != nil {
			return err
		}
		for _, p := range append(active.Properties, archived.Properties...) {
			if p.NormalizedAddress == norm {
				return fmt.Errorf("la propiedad %q sigue apareciendo tras el borrado", norm)
			}
		}
		return nil
	})

	if !ok && created {
		r.cleanup(ctx, &rep, norm)
	}
	return rep
}

// cleanup best-effort deletes the throwaway property after a failed run.
func (r *Runner) cleanup(ctx context.Context, rep *Report, norm string) {
	cctx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	if err := outcome(r.props.Delete(cctx, norm)); err != nil {
		log.Error().Err(err).Str("address", norm).Msg("Self-test cleanup failed; manual removal needed")
		rep.CleanupFailed = true
		return
	}
	log.Info().Str("address", norm).Msg("Self-test property cleaned up after failure")
}
