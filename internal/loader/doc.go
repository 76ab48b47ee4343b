// Package loader reads and writes classifier weights in the SafeTensors format.
//
// SafeTensors is the Hugging Face standard for weight files: an 8-byte
// little-endian header length, a JSON header describing every tensor, then
// the raw tensor bytes. Weights are converted to float32 on load (F32, F64,
// F16 and BF16 are accepted) and always written as F32.
//
// Example:
//
//	weights, err := loader.LoadSafeTensors("mobilenet_v2.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	kernel := weights["conv1.weight"]
//
// Design principles:
//   - Pure Go: No CGO dependencies
//   - Lazy loading: The reader loads tensors on demand
package loader
