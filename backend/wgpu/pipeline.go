//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// viewportUniformSize is the byte size of the Viewport uniform:
// size (vec2<f32>) plus padding to 16 bytes.
const viewportUniformSize = 16

// Bind group slots of the mask fill program.
const (
	bindingViewport = 0
	bindingVertices = 1
	bindingMask     = 2
)

// fillPipeline holds the GPU objects of the mask fill program.
type fillPipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
}

// createFillPipeline compiles the mask fill shader and creates the render
// pipeline with premultiplied alpha blending into a target of format.
func createFillPipeline(device hal.Device, format gputypes.TextureFormat) (*fillPipeline, error) {
	if maskFillShaderSource == "" {
		return nil, fmt.Errorf("mask fill shader source is empty")
	}
	p := &fillPipeline{}

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "mask_fill_shader",
		Source: hal.ShaderSource{WGSL: maskFillShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("compile mask fill shader: %w", err)
	}
	p.shader = shader

	stages := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "mask_fill_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: bindingViewport, Visibility: stages, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: bindingVertices, Visibility: stages, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: bindingMask, Visibility: stages, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create mask fill bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "mask_fill_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create mask fill pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "mask_fill_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create mask fill pipeline: %w", err)
	}
	p.pipeline = pipeline
	return p, nil
}

// destroy releases the pipeline objects in reverse creation order.
func (p *fillPipeline) destroy(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// makeViewportUniform encodes the Viewport uniform for a w x h target.
func makeViewportUniform(w, h uint32) []byte {
	buf := make([]byte, viewportUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(w)))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(h)))
	return buf
}

// quadDrawRange converts a vertex record span into the vertex range of the
// expanded triangle list: six shader vertices per quad.
func quadDrawRange(firstVertex, vertexCount int) (first, count uint32) {
	//nolint:gosec // G115: spans are bounded by the vertex buffer size
	return uint32(firstVertex / 4 * 6), uint32(vertexCount / 4 * 6)
}
