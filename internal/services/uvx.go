package services

// Package indexes uvx resolves Python tools from.
const (
	CUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL = "https://pypi.org/simple"
)

// TorchLegacyLoadEnv restores the pre-2.6 torch.load behaviour that the
// bundled separation, transcription and TTS checkpoints need.
const TorchLegacyLoadEnv = "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1"

// UVXIndexArgs returns the package index flags for a uvx invocation.
func UVXIndexArgs(cuda bool) []string {
	if cuda {
		return []string{"--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL}
	}
	return []string{"--index-url", PypiIndexURL}
}

// TorchDevice names the inference device flag value.
func TorchDevice(cuda bool) string {
	if cuda {
		return "cuda"
	}
	return "cpu"
}
