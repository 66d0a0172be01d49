//go:build !nogpu

package wgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/mask_fill.wgsl
var maskFillShaderSource string

// ShaderSource returns the WGSL source of the mask fill program.
func ShaderSource() string { return maskFillShaderSource }

// CompileSPIRV translates the mask fill program to SPIR-V with naga. Hosts
// that build pipelines outside HAL use it; it also validates the WGSL.
func CompileSPIRV() ([]byte, error) {
	spirv, err := naga.Compile(maskFillShaderSource)
	if err != nil {
		return nil, fmt.Errorf("compile mask fill shader: %w", err)
	}
	return spirv, nil
}
