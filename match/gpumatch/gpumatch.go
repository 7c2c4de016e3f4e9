// Package gpumatch offloads the segmented NCC matcher to a WebGPU compute
// device. It provides two kernels, SegmentedGpuV1 and SegmentedGpuV2, per
// spec §4.6.
//
// The original implementation (original_source/src/normalized_x_corr/open_cl.rs,
// src/template_match/opencl_kernel.rs, opencl_v2.rs) targets OpenCL. No Go
// OpenCL binding appears anywhere in the retrieved pack, so this is grounded
// instead on github.com/gogpu/wgpu's HAL compute pipeline
// (_examples/gogpu-gg/backend/native/adapter.go's HALAdapter and
// backend/wgpu/gpu_fine.go's WGSL-embed-and-compile path) — the same
// buffer/bind-group/dispatch shape, WGSL compute shaders standing in for
// OpenCL C kernels. See SPEC_FULL.md's DOMAIN STACK table and DESIGN.md.
package gpumatch

import (
	_ "embed"
	"fmt"
	"math"
	"sort"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/types"

	"github.com/soocke/autogui/match"
	"github.com/soocke/autogui/match/prep"
	"github.com/soocke/autogui/match/segment"
)

//go:embed shaders/segmented_ncc_v1.wgsl
var shaderV1 string

//go:embed shaders/segmented_ncc_v2.wgsl
var shaderV2 string

// workgroupSize is the 1-D compute workgroup size both kernels dispatch
// with; it must match the @workgroup_size attribute in both .wgsl sources.
const workgroupSize = 64

// sentinelScore mirrors the CPU matchers' blow-up sentinel (spec §9).
const sentinelScore float32 = -100

// gpuSegment is the GPU-side layout of segment.Segment; must match the
// Segment struct declared in both WGSL sources.
type gpuSegment struct {
	X, Y, W, H uint32
	Mean       float32
	_pad0      [3]uint32 // pad to 32 bytes for std430 array stride
}

// gpuResult is the GPU-side layout of one scored offset.
type gpuResult struct {
	X, Y  uint32
	Score float32
	_pad  uint32
}

// gpuParams is the uniform buffer laid out to match the Params struct in
// both WGSL sources.
type gpuParams struct {
	ScreenW, ScreenH   uint32
	TmplW, TmplH       uint32
	NumFastSegments    uint32
	NumSlowSegments    uint32
	FastThreshold      float32
	SlowThreshold      float32
	FastSSD, SlowSSD   float32
	FastMean, SlowMean float32
}

// Device is the minimal gogpu/wgpu handle this package needs: a HAL device
// and its queue, as produced by the host application's adapter/surface
// setup. Callers obtain these the way gogpu-gg's own examples do, outside
// this package's concern.
type Device struct {
	Dev   hal.Device
	Queue hal.Queue
}

// Matcher holds the compiled pipelines for one Device, reused across Match
// calls so shader compilation (naga.Compile) happens once.
type Matcher struct {
	dev   hal.Device
	queue hal.Queue

	module hal.ShaderModule
	layout hal.BindGroupLayout
	pipe   hal.ComputePipeline

	version match.MatchMode
}

// New compiles and builds the compute pipeline for mode (SegmentedGpuV1 or
// SegmentedGpuV2) against d. The returned Matcher should be reused for every
// Match call against this device; call Close when done.
func New(d Device, mode match.MatchMode) (*Matcher, error) {
	var src string
	switch mode {
	case match.SegmentedGpuV1:
		src = shaderV1
	case match.SegmentedGpuV2:
		src = shaderV2
	default:
		return nil, match.ErrUnsupportedMode
	}

	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("gpumatch: compile shader: %w", err)
	}
	spirv := bytesToUint32(spirvBytes)

	module, err := d.Dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  mode.String(),
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create shader module: %w", err)
	}

	entries := []types.BindGroupLayoutEntry{
		{Binding: 0, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeUniform}},
		{Binding: 1, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage}},
		{Binding: 2, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage}},
		{Binding: 3, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage}},
		{Binding: 4, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeStorage}},
	}
	if mode == match.SegmentedGpuV2 {
		// binding 5: a single atomic<u32> result counter the workgroups append
		// their compacted slow-pass matches through (opencl_kernel.rs's
		// valid_corr_count_slow, ported from atomic_add to WGSL atomics).
		entries = append(entries, types.BindGroupLayoutEntry{
			Binding: 5, Visibility: types.ShaderStageCompute,
			Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeStorage},
		})
	}

	layout, err := d.Dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "segmented_ncc_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create bind group layout: %w", err)
	}

	pipelineLayout, err := d.Dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "segmented_ncc_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create pipeline layout: %w", err)
	}

	pipe, err := d.Dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "segmented_ncc_pipeline",
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: "cs_main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create compute pipeline: %w", err)
	}

	return &Matcher{dev: d.Dev, queue: d.Queue, module: module, layout: layout, pipe: pipe, version: mode}, nil
}

// Close releases the pipeline, layout and shader module.
func (m *Matcher) Close() {
	if m.pipe != nil {
		m.dev.DestroyComputePipeline(m.pipe)
	}
	if m.layout != nil {
		m.dev.DestroyBindGroupLayout(m.layout)
	}
	if m.module != nil {
		m.dev.DestroyShaderModule(m.module)
	}
}

// Match dispatches one work-item per candidate offset (V1) or one workgroup
// per offset with a cooperative fast-pass filter and an atomic result
// counter (V2), per spec §4.6. Both kernels read fast/slow segments and the
// screen grid from storage buffers and write scored offsets to an output
// buffer sized for the worst case (every offset matches).
func (m *Matcher) Match(data *prep.SegmentedData, screen match.GrayGrid, precision float32) ([]match.Point, error) {
	w, h := data.TmplW, data.TmplH
	W, H := screen.W, screen.H
	if W < w || H < h {
		return nil, match.ErrRegionOutOfBounds
	}

	rows := H - h + 1
	cols := W - w + 1
	numOffsets := rows * cols
	if numOffsets <= 0 {
		return nil, nil
	}

	params := gpuParams{
		ScreenW: uint32(W), ScreenH: uint32(H),
		TmplW: uint32(w), TmplH: uint32(h),
		NumFastSegments: uint32(len(data.FastSegments)),
		NumSlowSegments: uint32(len(data.SlowSegments)),
		FastThreshold:   precision*data.FastExpectedCorr - gpuEps,
		SlowThreshold:   precision*data.SlowExpectedCorr - gpuEps,
		FastSSD:         data.FastSSD, SlowSSD: data.SlowSSD,
		FastMean: data.FastMean, SlowMean: data.SlowMean,
	}

	fastSegs := toGPUSegments(data.FastSegments)
	slowSegs := toGPUSegments(data.SlowSegments)
	pix := screenToFloat(screen.Pix)

	paramsBuf, err := m.uploadUniform(structToBytes(params))
	if err != nil {
		return nil, err
	}
	defer m.dev.DestroyBuffer(paramsBuf)

	fastBuf, err := m.uploadStorage(segmentsToBytes(fastSegs))
	if err != nil {
		return nil, err
	}
	defer m.dev.DestroyBuffer(fastBuf)

	slowBuf, err := m.uploadStorage(segmentsToBytes(slowSegs))
	if err != nil {
		return nil, err
	}
	defer m.dev.DestroyBuffer(slowBuf)

	screenBuf, err := m.uploadStorage(floatsToBytes(pix))
	if err != nil {
		return nil, err
	}
	defer m.dev.DestroyBuffer(screenBuf)

	const resultStride = 16 // sizeof(gpuResult), padded
	outSize := numOffsets * resultStride
	outBuf, err := m.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "segmented_ncc_out",
		Size:  uint64(outSize),
		Usage: types.BufferUsageStorage | types.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create output buffer: %w", err)
	}
	defer m.dev.DestroyBuffer(outBuf)

	bindEntries := []types.BindGroupEntry{
		{Binding: 0, Resource: types.BufferBinding{Buffer: paramsBuf, Offset: 0, Size: uint64(len(structToBytes(params)))}},
		{Binding: 1, Resource: types.BufferBinding{Buffer: fastBuf, Offset: 0, Size: uint64(len(segmentsToBytes(fastSegs)))}},
		{Binding: 2, Resource: types.BufferBinding{Buffer: slowBuf, Offset: 0, Size: uint64(len(segmentsToBytes(slowSegs)))}},
		{Binding: 3, Resource: types.BufferBinding{Buffer: screenBuf, Offset: 0, Size: uint64(len(floatsToBytes(pix)))}},
		{Binding: 4, Resource: types.BufferBinding{Buffer: outBuf, Offset: 0, Size: uint64(outSize)}},
	}

	var counterBuf hal.Buffer
	isV2 := m.version == match.SegmentedGpuV2
	if isV2 {
		counterBuf, err = m.dev.CreateBuffer(&hal.BufferDescriptor{
			Label: "segmented_ncc_counter",
			Size:  4,
			Usage: types.BufferUsageStorage | types.BufferUsageCopyDst | types.BufferUsageCopySrc,
		})
		if err != nil {
			return nil, fmt.Errorf("gpumatch: create counter buffer: %w", err)
		}
		defer m.dev.DestroyBuffer(counterBuf)
		m.queue.WriteBuffer(counterBuf, 0, []byte{0, 0, 0, 0})
		bindEntries = append(bindEntries, types.BindGroupEntry{
			Binding: 5, Resource: types.BufferBinding{Buffer: counterBuf, Offset: 0, Size: 4},
		})
	}

	bindGroup, err := m.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "segmented_ncc_bindgroup",
		Layout:  m.layout,
		Entries: bindEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create bind group: %w", err)
	}
	defer m.dev.DestroyBindGroup(bindGroup)

	encoder, err := m.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "segmented_ncc_encoder"})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("segmented_ncc"); err != nil {
		return nil, fmt.Errorf("gpumatch: begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "segmented_ncc_pass"})
	pass.SetPipeline(m.pipe)
	pass.SetBindGroup(0, bindGroup, nil)

	// V1 dispatches one thread per offset, flattened across workgroups. V2
	// dispatches one whole workgroup per offset: its threads cooperatively
	// sum the fast-pass segments and then the slow-pass segments; thread 0
	// reduces each pass, makes the threshold decisions and atomically appends
	// a match to the compacted output (spec §4.6).
	var workgroups uint32
	if isV2 {
		workgroups = uint32(numOffsets)
	} else {
		workgroups = uint32((numOffsets + workgroupSize - 1) / workgroupSize)
	}
	pass.Dispatch(workgroups, 1, 1)
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpumatch: end encoding: %w", err)
	}
	defer cmdBuf.Destroy()

	fence, err := m.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create fence: %w", err)
	}
	defer m.dev.DestroyFence(fence)

	if err := m.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpumatch: submit: %w", err)
	}
	if _, err := m.dev.Wait(fence, 1, 10_000_000_000); err != nil {
		return nil, fmt.Errorf("gpumatch: wait for fence: %w", err)
	}

	var results []match.Point
	if isV2 {
		countRaw, err := m.readBuffer(counterBuf, 0, 4)
		if err != nil {
			return nil, err
		}
		count := int(le32(countRaw))
		if count > numOffsets {
			count = numOffsets
		}
		if count > 0 {
			raw, err := m.readBuffer(outBuf, 0, uint64(count*resultStride))
			if err != nil {
				return nil, err
			}
			results = decodeResults(raw, resultStride)
		}
	} else {
		raw, err := m.readBuffer(outBuf, 0, uint64(outSize))
		if err != nil {
			return nil, err
		}
		results = decodeResults(raw, resultStride)
	}

	sort.Sort(match.ByScoreDesc(results))
	return results, nil
}

// gpuEps mirrors segmatch.eps; kept local since the two packages evaluate
// the same threshold identity on different hardware.
const gpuEps = 1e-4

func (m *Matcher) uploadUniform(data []byte) (hal.Buffer, error) {
	return m.upload(data, types.BufferUsageUniform|types.BufferUsageCopyDst)
}

func (m *Matcher) uploadStorage(data []byte) (hal.Buffer, error) {
	return m.upload(data, types.BufferUsageStorage|types.BufferUsageCopyDst)
}

func (m *Matcher) upload(data []byte, usage types.BufferUsage) (hal.Buffer, error) {
	size := len(data)
	if size == 0 {
		size = 4
	}
	buf, err := m.dev.CreateBuffer(&hal.BufferDescriptor{Label: "segmented_ncc_in", Size: uint64(size), Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create buffer: %w", err)
	}
	if len(data) > 0 {
		m.queue.WriteBuffer(buf, 0, data)
	}
	return buf, nil
}

// readBuffer copies a GPU buffer back to host memory via a staging buffer,
// the same copy-submit-wait-ReadBuffer shape as VelloAccelerator.readbackBuffer.
func (m *Matcher) readBuffer(src hal.Buffer, offset, size uint64) ([]byte, error) {
	staging, err := m.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "segmented_ncc_staging",
		Size:  size,
		Usage: types.BufferUsageMapRead | types.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create staging buffer: %w", err)
	}
	defer m.dev.DestroyBuffer(staging)

	encoder, err := m.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "segmented_ncc_readback"})
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create readback encoder: %w", err)
	}
	if err := encoder.BeginEncoding("segmented_ncc_readback"); err != nil {
		return nil, fmt.Errorf("gpumatch: begin readback encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{{SrcOffset: offset, DstOffset: 0, Size: size}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpumatch: end readback encoding: %w", err)
	}
	defer cmdBuf.Destroy()

	fence, err := m.dev.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpumatch: create readback fence: %w", err)
	}
	defer m.dev.DestroyFence(fence)

	if err := m.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpumatch: submit readback: %w", err)
	}
	ok, err := m.dev.Wait(fence, 1, 10_000_000_000)
	if err != nil {
		return nil, fmt.Errorf("gpumatch: wait for readback fence: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("gpumatch: readback timed out")
	}

	result := make([]byte, size)
	if err := m.queue.ReadBuffer(staging, 0, result); err != nil {
		return nil, fmt.Errorf("gpumatch: read staging buffer: %w", err)
	}
	return result, nil
}

func decodeResults(raw []byte, stride int) []match.Point {
	var out []match.Point
	for off := 0; off+stride <= len(raw); off += stride {
		x := le32(raw[off:])
		y := le32(raw[off+4:])
		score := math.Float32frombits(le32(raw[off+8:]))
		if score <= sentinelScore {
			continue
		}
		out = append(out, match.Point{X: int(x), Y: int(y), Score: score})
	}
	return out
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func bytesToUint32(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = le32(b[i*4:])
	}
	return out
}

func toGPUSegments(segs []segment.Segment) []gpuSegment {
	out := make([]gpuSegment, len(segs))
	for i, s := range segs {
		out[i] = gpuSegment{X: uint32(s.X), Y: uint32(s.Y), W: uint32(s.W), H: uint32(s.H), Mean: s.Mean}
	}
	return out
}

func screenToFloat(pix []uint8) []float32 {
	out := make([]float32, len(pix))
	for i, p := range pix {
		out[i] = float32(p)
	}
	return out
}

func putLE32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func putFloat32(b []byte, off int, v float32) {
	putLE32(b, off, math.Float32bits(v))
}

// structToBytes serializes gpuParams field-by-field in declaration order
// (std140 uniform layout: all fields here are 4-byte scalars, so natural
// order already matches the WGSL struct with no extra padding needed).
func structToBytes(p gpuParams) []byte {
	buf := make([]byte, 48)
	putLE32(buf, 0, p.ScreenW)
	putLE32(buf, 4, p.ScreenH)
	putLE32(buf, 8, p.TmplW)
	putLE32(buf, 12, p.TmplH)
	putLE32(buf, 16, p.NumFastSegments)
	putLE32(buf, 20, p.NumSlowSegments)
	putFloat32(buf, 24, p.FastThreshold)
	putFloat32(buf, 28, p.SlowThreshold)
	putFloat32(buf, 32, p.FastSSD)
	putFloat32(buf, 36, p.SlowSSD)
	putFloat32(buf, 40, p.FastMean)
	putFloat32(buf, 44, p.SlowMean)
	return buf
}

// segmentsToBytes serializes gpuSegment as std430: 4 uint32 + 1 float32 +
// 3 uint32 padding = 32 bytes per element, matching the Segment array
// stride declared in both WGSL sources.
func segmentsToBytes(segs []gpuSegment) []byte {
	buf := make([]byte, len(segs)*32)
	for i, s := range segs {
		off := i * 32
		putLE32(buf, off, s.X)
		putLE32(buf, off+4, s.Y)
		putLE32(buf, off+8, s.W)
		putLE32(buf, off+12, s.H)
		putFloat32(buf, off+16, s.Mean)
	}
	return buf
}

func floatsToBytes(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		putFloat32(buf, i*4, v)
	}
	return buf
}
