// Package config holds runtime configuration for the template-matching
// engine and its ambient stack (logging verbosity, GPU dispatch size,
// HiDPI scaling). Fields carry JSON tags so a Config can be decoded from
// JSON; this package itself reads no files and parses no flags.
//
// Grounded on the teacher's config/config.go: same struct-of-JSON-tags
// shape and the same DefaultConfig/Validate clamp-don't-fail idiom, with
// the multi-scale-search fields dropped (spec Non-goal) and the
// segmenter/GPU/retina fields from SPEC_FULL.md's ambient stack added.
package config

// Config holds tunables for template preparation, the segmenter's
// threshold ladder, GPU dispatch, and diagnostic logging.
type Config struct {
	// SuppressWarnings gates the diagnostic channel (internal/diag): when
	// true, warnings such as "timeout=0 means indefinite" are swallowed
	// instead of logged. Mirrors the engine constructor's
	// suppress_warnings flag (spec §6, §7).
	SuppressWarnings bool `json:"suppress_warnings"`

	// Precision is an NCC score threshold in [0,1], clamped by Validate.
	// No engine or registry method reads it: Find and its variants take
	// precision as an argument.
	Precision float64 `json:"precision"`

	// SegmentThreshold overrides the segmenter's initial k multiplier for
	// both the fast and slow passes (spec §4.3's opts.threshold) of every
	// template the registry prepares without an explicit threshold. Zero
	// means "use the segmenter's built-in starting k (0.99 fast, 0.85
	// slow)".
	SegmentThreshold float64 `json:"segment_threshold"`

	// FastTargetCorr / SlowTargetCorr hold the expected-correlation floors
	// of the segmenter's threshold loop (spec §4.2), clamped by Validate.
	// The segmenter does not read them: its targets are fixed at -0.95
	// (fast) and 0.99 (slow), the same values as these defaults.
	FastTargetCorr float64 `json:"fast_target_corr"`
	SlowTargetCorr float64 `json:"slow_target_corr"`

	// GpuWorkgroupSize records the workgroup size of the segmented-GPU
	// kernels. The spec notes device-reported max is commonly 256;
	// package gpumatch does not read this field: both of its WGSL
	// kernels are compiled with a fixed @workgroup_size of 64, the same
	// value as this default.
	GpuWorkgroupSize int `json:"gpu_workgroup_size"`

	// RetinaScale is the screen-capture scaling factor reported by the
	// platform (>1 on HiDPI/Retina displays). When >1, Registry.Store
	// additionally prepares a "_backup" variant of the template resized
	// by 1/RetinaScale (spec §4.7, §9).
	RetinaScale float64 `json:"retina_scale"`

	// LoopPollIntervalMS is the sleep between loop_find/loop_find_stored
	// re-polls. The spec does not mandate sleeping (§5: "the loop
	// re-polls immediately"); a small interval avoids pegging a CPU core
	// when the caller supplies a long timeout.
	LoopPollIntervalMS int `json:"loop_poll_interval_ms"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		SuppressWarnings:   false,
		Precision:          0.90,
		SegmentThreshold:   0,
		FastTargetCorr:     -0.95,
		SlowTargetCorr:     0.99,
		GpuWorkgroupSize:   64,
		RetinaScale:        1.0,
		LoopPollIntervalMS: 20,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.Precision <= 0 || c.Precision > 1 {
		c.Precision = 0.90
	}
	if c.SegmentThreshold < 0 || c.SegmentThreshold >= 1 {
		c.SegmentThreshold = 0
	}
	if c.FastTargetCorr < -1 || c.FastTargetCorr > 1 {
		c.FastTargetCorr = -0.95
	}
	if c.SlowTargetCorr < c.FastTargetCorr || c.SlowTargetCorr > 1 {
		c.SlowTargetCorr = 0.99
	}
	if c.GpuWorkgroupSize <= 0 {
		c.GpuWorkgroupSize = 64
	}
	if c.RetinaScale <= 0 {
		c.RetinaScale = 1.0
	}
	if c.LoopPollIntervalMS < 0 {
		c.LoopPollIntervalMS = 20
	}
	return nil
}
