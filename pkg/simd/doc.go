// Package simd provides the float32 kernels behind the point-set loss
// operations, with platform-specific implementations selected at build time:
//
//   - x86/amd64: 8-way unrolled loops the compiler auto-vectorizes with
//     AVX2/SSE (runtime feature detection via golang.org/x/sys/cpu)
//   - arm64: NEON SIMD through the viterin/vek assembly kernels
//   - fallback: viterin/vek optimized pure Go for all other platforms
//
// The kernels operate on contiguous coordinate blocks and make no bounds
// decisions of their own; callers validate shapes before dispatch. Build with
// the nosimd tag to force the generic implementation. Use Info to inspect
// which implementation is active.
package simd
