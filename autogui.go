// Package autogui is the public entry point for the template-matching
// engine (spec §6): preparing templates, storing named ones, and searching
// the screen for them. Screen capture and input synthesis are pulled in as
// thin collaborators (packages screen and input); image decoding is left to
// a caller-supplied ImageDecoder so this module never depends on an
// image-codec library itself (spec §1 Out of scope).
//
// Grounded on soockee-pixel-bot-go's app/container.go composition root (a
// struct built by an explicit constructor, dependencies wired in after
// construction via setter methods like capture_service.go's
// SetSelectionProvider) and on
// original_source/src/rustautogui_impl/template_match_impl/load_img_impl.rs
// + find_img_impl.rs for which operations the engine exposes.
package autogui

import (
	"fmt"
	"log/slog"

	"github.com/soocke/autogui/config"
	"github.com/soocke/autogui/internal/diag"
	"github.com/soocke/autogui/input"
	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/gpumatch"
	"github.com/soocke/autogui/match/prep"
	"github.com/soocke/autogui/registry"
	"github.com/soocke/autogui/screen"
)

// ImageDecoder turns an encoded image file's bytes into a grayscale grid.
// The engine never implements this itself (spec §1); a caller wanting
// PrepareTemplateFromBytes/StoreTemplateFromBytes must supply one (e.g. a
// thin wrapper around image.Decode + internal/grayconv).
type ImageDecoder interface {
	Decode(data []byte) (match.GrayGrid, error)
}

// SearchDebugInfo is the payload passed to an Engine's OnSearch hook,
// reinstating original_source's debug image dump (src/lib.rs's debug flag)
// without pulling an image-encoding library into this module: callers that
// want to persist it do so themselves (SPEC_FULL.md's supplemented
// features).
type SearchDebugInfo struct {
	Alias  string
	Region match.Region
	Screen match.GrayGrid
	Points []match.Point
}

// Engine is the composition root: registry + screen capturer + input
// synthesis + diagnostics, per spec §6's external API.
type Engine struct {
	cfg      *config.Config
	diag     *diag.Channel
	capturer screen.Capturer
	mouse    input.MouseSynth
	keys     input.KeySynth
	registry *registry.Registry
	decoder  ImageDecoder
	onSearch func(SearchDebugInfo)
}

// New builds an Engine with standard defaults and the suppress_warnings
// flag spec §6 names explicitly. Screen capture and input synthesis use
// this platform's concrete implementation (screen.New / input.New).
func New(suppressWarnings bool) (*Engine, error) {
	cfg := config.DefaultConfig()
	cfg.SuppressWarnings = suppressWarnings
	return NewWithConfig(cfg, nil)
}

// NewWithConfig builds an Engine from an explicit Config and logger, for
// callers that need segmenter threshold, loop poll interval, or
// retina-scale tuning beyond New's defaults. A nil logger falls back to slog.Default().
func NewWithConfig(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	diagCh := diag.New(logger, cfg.SuppressWarnings)
	capturer := screen.New()
	mouse, keys := input.New()
	reg := registry.New(capturer, cfg, diagCh, nil)
	return &Engine{
		cfg:      cfg,
		diag:     diagCh,
		capturer: capturer,
		mouse:    mouse,
		keys:     keys,
		registry: reg,
	}, nil
}

// SetImageDecoder wires the collaborator PrepareTemplateFromBytes and
// StoreTemplateFromBytes need.
func (e *Engine) SetImageDecoder(d ImageDecoder) { e.decoder = d }

// SetGPUDevice wires a gogpu/wgpu device for SegmentedGpuV1/V2 template
// preparation. Required before storing a template under either GPU mode.
func (e *Engine) SetGPUDevice(dev *gpumatch.Device) { e.registry.SetGPUDevice(dev) }

// SetOnSearch installs a hook invoked after every Find/FindStored call that
// returns without error, with the alias searched ("" for Find) and the
// scored offsets, reinstating original_source's debug dump as an opt-in
// callback (SPEC_FULL.md). The hook is not called when the search returns
// an error, and SearchDebugInfo's Screen and Region fields are left zero.
func (e *Engine) SetOnSearch(fn func(SearchDebugInfo)) { e.onSearch = fn }

// Mouse exposes the platform mouse synthesizer (spec §1 external
// collaborator).
func (e *Engine) Mouse() input.MouseSynth { return e.mouse }

// Keys exposes the platform key synthesizer (spec §1 external
// collaborator).
func (e *Engine) Keys() input.KeySynth { return e.keys }

// ScreenSize reports the full virtual screen's dimensions in physical
// pixels (spec §6), backed by the real capturer per SPEC_FULL.md's
// supplemented feature #1.
func (e *Engine) ScreenSize() (int, int) { return e.capturer.Size() }

// Close releases GPU pipelines owned by the engine's registry.
func (e *Engine) Close() { e.registry.Close() }

func (e *Engine) resolveRegion(region *match.Region) match.Region {
	if region != nil {
		return *region
	}
	w, h := e.capturer.Size()
	return match.Region{X0: 0, Y0: 0, W: w, H: h}
}

func (e *Engine) decode(data []byte) (match.GrayGrid, error) {
	if e.decoder == nil {
		return match.GrayGrid{}, fmt.Errorf("autogui: no image decoder configured: %w", match.ErrImageDecodeError)
	}
	grid, err := e.decoder.Decode(data)
	if err != nil {
		return match.GrayGrid{}, fmt.Errorf("autogui: decode template: %v: %w", err, match.ErrImageDecodeError)
	}
	return grid, nil
}

// PrepareTemplateFromGrid fills the default template slot from an
// already-decoded grayscale grid. region defaults to the whole screen.
func (e *Engine) PrepareTemplateFromGrid(tmpl match.GrayGrid, region *match.Region, mode match.MatchMode) error {
	return e.registry.PrepareDefault(tmpl, e.resolveRegion(region), mode, prep.Options{})
}

// PrepareTemplateFromBytes decodes data via the configured ImageDecoder and
// fills the default template slot.
func (e *Engine) PrepareTemplateFromBytes(data []byte, region *match.Region, mode match.MatchMode) error {
	tmpl, err := e.decode(data)
	if err != nil {
		return err
	}
	return e.PrepareTemplateFromGrid(tmpl, region, mode)
}

// StoreTemplateFromGrid prepares tmpl and stores it under alias.
func (e *Engine) StoreTemplateFromGrid(alias string, tmpl match.GrayGrid, region *match.Region, mode match.MatchMode) error {
	return e.registry.Store(alias, tmpl, e.resolveRegion(region), mode, prep.Options{})
}

// StoreTemplateFromGridCustom is StoreTemplateFromGrid with an explicit
// segmenter threshold override (spec §4.3's opts.threshold).
func (e *Engine) StoreTemplateFromGridCustom(alias string, tmpl match.GrayGrid, region *match.Region, mode match.MatchMode, threshold float32) error {
	return e.registry.Store(alias, tmpl, e.resolveRegion(region), mode, prep.Options{Threshold: threshold})
}

// StoreTemplateFromBytes decodes data and stores it under alias.
func (e *Engine) StoreTemplateFromBytes(alias string, data []byte, region *match.Region, mode match.MatchMode) error {
	tmpl, err := e.decode(data)
	if err != nil {
		return err
	}
	return e.StoreTemplateFromGrid(alias, tmpl, region, mode)
}

// StoreTemplateFromBytesCustom decodes data and stores it under alias with
// an explicit segmenter threshold override.
func (e *Engine) StoreTemplateFromBytesCustom(alias string, data []byte, region *match.Region, mode match.MatchMode, threshold float32) error {
	tmpl, err := e.decode(data)
	if err != nil {
		return err
	}
	return e.StoreTemplateFromGridCustom(alias, tmpl, region, mode, threshold)
}

// Find searches using the default template slot (spec §6).
func (e *Engine) Find(precision float32) ([]match.Point, error) {
	points, err := e.registry.Find(precision)
	e.reportSearch("", points, err)
	return points, err
}

// FindStored searches using the template stored under alias.
func (e *Engine) FindStored(precision float32, alias string) ([]match.Point, error) {
	points, err := e.registry.FindStored(precision, alias)
	e.reportSearch(alias, points, err)
	return points, err
}

// LoopFind retries Find until a non-empty result or timeoutS elapses.
func (e *Engine) LoopFind(precision float32, timeoutS float64) ([]match.Point, error) {
	return e.registry.LoopFind(precision, timeoutS)
}

// LoopFindStored retries FindStored until a non-empty result or timeoutS
// elapses.
func (e *Engine) LoopFindStored(precision float32, timeoutS float64, alias string) ([]match.Point, error) {
	return e.registry.LoopFindStored(precision, timeoutS, alias)
}

func (e *Engine) reportSearch(alias string, points []match.Point, err error) {
	if e.onSearch == nil || err != nil {
		return
	}
	e.onSearch(SearchDebugInfo{Alias: alias, Points: points})
}
