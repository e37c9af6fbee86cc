//go:build cuda

package platform

const cudaBuilt = true
