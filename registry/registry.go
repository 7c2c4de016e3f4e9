// Package registry implements the named storage of prepared templates the
// spec calls the Registry (spec §4.7): a default (unnamed) slot used by the
// prepare/find shortcut, a map of caller-named aliases, the scoped
// save/restore swap that backs find_stored, and the retina/HiDPI backup
// variant recursion.
//
// Grounded on soockee-pixel-bot-go's domain/capture/capture_service.go for
// the struct-holds-logger-and-mutable-state shape and on
// original_source/src/rustautogui_impl/template_match_impl/find_img_impl.rs
// for the swap-into-default-slot-then-restore pattern (find_stored_image_on_screen's
// BackupData) and the retina backup recursion (run_macos_xcorr_with_backup).
package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soocke/autogui/config"
	"github.com/soocke/autogui/internal/diag"
	"github.com/soocke/autogui/internal/grayconv"
	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/fftmatch"
	"github.com/soocke/autogui/match/gpumatch"
	"github.com/soocke/autogui/match/prep"
	"github.com/soocke/autogui/match/segmatch"
	"github.com/soocke/autogui/screen"
)

// DefaultAlias and BackupSuffix name the two internal reserved keys spec §3
// describes: the unnamed slot used by prepare_default/find, and the retina
// backup variant stored alongside any alias (including the default slot's
// own backup, stored under "default_backup").
const (
	DefaultAlias = "default"
	BackupSuffix = "_backup"
	backupAlias  = DefaultAlias + BackupSuffix
)

func isReserved(alias string) bool {
	return alias == DefaultAlias || alias == backupAlias
}

// NamedEntry bundles a prepared template with the region and mode it was
// prepared against, per spec §3.
type NamedEntry struct {
	Prepared match.PreparedTemplate
	Region   match.Region
	Mode     match.MatchMode
}

// Registry owns every PreparedTemplate's bytes and, for GPU modes, the
// parallel gogpu/wgpu pipeline keyed by the same alias (spec §3, §9).
//
// The registry's default slot is mutated only during a FindStored
// save/restore window; per spec §5 this must run on a single goroutine.
// Registry serializes its own operations with a mutex so a misuse does not
// corrupt the maps, but concurrent Find* calls against one Registry are
// still not a supported usage pattern — callers must not rely on them
// running independently.
type Registry struct {
	mu sync.Mutex

	capturer screen.Capturer
	cfg      *config.Config
	diag     *diag.Channel
	gpuDev   *gpumatch.Device

	entries map[string]*NamedEntry
	gpu     map[string]*gpumatch.Matcher
}

// New builds a Registry backed by capturer for screen grabs. cfg and diagCh
// may be nil (defaults/slog.Default apply). gpuDev may be nil; Store then
// rejects GPU match modes with ErrGpuDeviceError until SetGPUDevice is
// called.
func New(capturer screen.Capturer, cfg *config.Config, diagCh *diag.Channel, gpuDev *gpumatch.Device) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if diagCh == nil {
		diagCh = diag.New(nil, cfg.SuppressWarnings)
	}
	return &Registry{
		capturer: capturer,
		cfg:      cfg,
		diag:     diagCh,
		gpuDev:   gpuDev,
		entries:  make(map[string]*NamedEntry),
		gpu:      make(map[string]*gpumatch.Matcher),
	}
}

// SetGPUDevice wires (or replaces) the device used to build GPU pipelines
// for templates stored after this call; templates already stored under a
// GPU mode keep their existing pipeline.
func (r *Registry) SetGPUDevice(dev *gpumatch.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gpuDev = dev
}

// Close releases every GPU pipeline this registry owns.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for alias, m := range r.gpu {
		m.Close()
		delete(r.gpu, alias)
	}
}

// Store prepares tmpl for region/mode and inserts it under alias (spec
// §4.7). Rejects the reserved internal aliases "default"/"default_backup".
func (r *Registry) Store(alias string, tmpl match.GrayGrid, region match.Region, mode match.MatchMode, opts prep.Options) error {
	if isReserved(alias) {
		return match.ErrAliasReserved
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storeLocked(alias, tmpl, region, mode, opts)
}

// PrepareDefault fills the default slot, the shortcut Find searches
// against (spec §4.7).
func (r *Registry) PrepareDefault(tmpl match.GrayGrid, region match.Region, mode match.MatchMode, opts prep.Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storeLocked(DefaultAlias, tmpl, region, mode, opts)
}

func (r *Registry) storeLocked(alias string, tmpl match.GrayGrid, region match.Region, mode match.MatchMode, opts prep.Options) error {
	sw, sh := r.capturer.Size()
	if !region.Valid(sw, sh, tmpl.W, tmpl.H) {
		return match.ErrRegionOutOfBounds
	}
	if opts.Threshold == 0 && r.cfg.SegmentThreshold > 0 {
		opts.Threshold = float32(r.cfg.SegmentThreshold)
	}

	prepared, err := prep.Prepare(tmpl, region, mode, opts)
	if err != nil {
		return err
	}
	if err := r.attachGPULocked(alias, mode); err != nil {
		return err
	}
	r.entries[alias] = &NamedEntry{Prepared: prepared, Region: region, Mode: mode}

	// Retina/HiDPI backup (spec §4.7, §9): prepare a second variant resized
	// by the inverse scaling factor, under "<alias>_backup". The suffix
	// check bounds the recursion to one level.
	if r.cfg.RetinaScale > 1 && !strings.HasSuffix(alias, BackupSuffix) {
		bw := int(float64(tmpl.W) / r.cfg.RetinaScale)
		bh := int(float64(tmpl.H) / r.cfg.RetinaScale)
		if bw > 0 && bh > 0 {
			backupTmpl := grayconv.Resize(tmpl, bw, bh)
			if err := r.storeLocked(alias+BackupSuffix, backupTmpl, region, mode, opts); err != nil {
				r.diag.Warn("registry: retina backup prepare failed", "alias", alias, "err", err)
			}
		}
	}
	return nil
}

func (r *Registry) attachGPULocked(alias string, mode match.MatchMode) error {
	if mode != match.SegmentedGpuV1 && mode != match.SegmentedGpuV2 {
		return nil
	}
	if r.gpuDev == nil {
		return match.ErrGpuDeviceError
	}
	m, err := gpumatch.New(*r.gpuDev, mode)
	if err != nil {
		return fmt.Errorf("registry: gpu pipeline: %w", err)
	}
	if old, ok := r.gpu[alias]; ok {
		old.Close()
	}
	r.gpu[alias] = m
	return nil
}

// Find searches using whatever is in the default slot (spec §4.7).
func (r *Registry) Find(precision float32) ([]match.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(precision, false)
}

// FindStored temporarily swaps the named entry into the default slot,
// searches, and restores the prior default-slot contents on every exit
// path including errors (spec §4.7, §9).
func (r *Registry) FindStored(precision float32, alias string) ([]match.Point, error) {
	if isReserved(alias) {
		return nil, match.ErrAliasReserved
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findStoredLocked(precision, alias)
}

func (r *Registry) findStoredLocked(precision float32, alias string) ([]match.Point, error) {
	entry, ok := r.entries[alias]
	if !ok {
		return nil, match.ErrAliasMissing
	}
	gpuM := r.gpu[alias]

	prevEntry, hadEntry := r.entries[DefaultAlias]
	prevGPU, hadGPU := r.gpu[DefaultAlias]

	r.entries[DefaultAlias] = entry
	if gpuM != nil {
		r.gpu[DefaultAlias] = gpuM
	} else {
		delete(r.gpu, DefaultAlias)
	}

	defer func() {
		if hadEntry {
			r.entries[DefaultAlias] = prevEntry
		} else {
			delete(r.entries, DefaultAlias)
		}
		if hadGPU {
			r.gpu[DefaultAlias] = prevGPU
		} else {
			delete(r.gpu, DefaultAlias)
		}
	}()

	return r.findLocked(precision, strings.HasSuffix(alias, BackupSuffix))
}

// findLocked searches the current default slot and adjusts raw
// region-relative offsets to screen-space centers (spec §6: "point to the
// center of the matched region"). When the result is empty, a retina
// scaling factor is configured, and this isn't already a backup-variant
// recursion, it falls back to the "default_backup" variant exactly as
// original_source's run_macos_xcorr_with_backup does.
func (r *Registry) findLocked(precision float32, isBackupRecursion bool) ([]match.Point, error) {
	entry, ok := r.entries[DefaultAlias]
	if !ok {
		return nil, match.ErrNoTemplatePrepared
	}
	gpuM := r.gpu[DefaultAlias]

	points, err := r.search(entry, gpuM, precision)
	if err != nil {
		return nil, err
	}

	if len(points) == 0 && r.cfg.RetinaScale > 1 && !isBackupRecursion {
		if _, ok := r.entries[backupAlias]; ok {
			return r.findStoredLocked(precision, backupAlias)
		}
	}

	w, h := entry.Prepared.Dims()
	out := make([]match.Point, len(points))
	for i, p := range points {
		out[i] = match.Point{
			X:     entry.Region.X0 + p.X + w/2,
			Y:     entry.Region.Y0 + p.Y + h/2,
			Score: p.Score,
		}
	}
	return out, nil
}

func (r *Registry) search(entry *NamedEntry, gpuM *gpumatch.Matcher, precision float32) ([]match.Point, error) {
	grid, err := r.capturer.GrabGray(entry.Region.X0, entry.Region.Y0, entry.Region.W, entry.Region.H)
	if err != nil {
		return nil, fmt.Errorf("registry: capture: %w", err)
	}
	defer r.capturer.ReleaseGray(grid)

	switch entry.Mode {
	case match.FFT:
		data, ok := entry.Prepared.(*prep.FFTData)
		if !ok {
			return nil, match.ErrUnsupportedMode
		}
		return fftmatch.Match(data, grid, precision)
	case match.Segmented:
		data, ok := entry.Prepared.(*prep.SegmentedData)
		if !ok {
			return nil, match.ErrUnsupportedMode
		}
		return segmatch.Match(data, grid, precision)
	case match.SegmentedGpuV1, match.SegmentedGpuV2:
		data, ok := entry.Prepared.(*prep.SegmentedData)
		if !ok {
			return nil, match.ErrUnsupportedMode
		}
		if gpuM == nil {
			return nil, match.ErrGpuDeviceError
		}
		return gpuM.Match(data, grid, precision)
	default:
		return nil, match.ErrUnsupportedMode
	}
}

// LoopFind retries Find until a non-empty result or timeoutS elapses.
// timeoutS == 0 means indefinite (warns via the diagnostic channel, spec
// §7), matching loop_find_image_on_screen's timeout==0 check.
func (r *Registry) LoopFind(precision float32, timeoutS float64) ([]match.Point, error) {
	return r.loop(timeoutS, func() ([]match.Point, error) { return r.Find(precision) })
}

// LoopFindStored is LoopFind against a named alias via FindStored.
func (r *Registry) LoopFindStored(precision float32, timeoutS float64, alias string) ([]match.Point, error) {
	return r.loop(timeoutS, func() ([]match.Point, error) { return r.FindStored(precision, alias) })
}

func (r *Registry) loop(timeoutS float64, fn func() ([]match.Point, error)) ([]match.Point, error) {
	if timeoutS == 0 {
		r.diag.Warn("registry: loop_find timeout=0 initiates an indefinite loop")
	}
	start := time.Now()
	poll := time.Duration(r.cfg.LoopPollIntervalMS) * time.Millisecond
	for {
		if timeoutS > 0 && time.Since(start).Seconds() > timeoutS {
			return nil, match.ErrFindTimeout
		}
		points, err := fn()
		if err != nil {
			return nil, err
		}
		if len(points) > 0 {
			return points, nil
		}
		if poll > 0 {
			time.Sleep(poll)
		}
	}
}
