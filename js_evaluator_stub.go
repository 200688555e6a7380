//go:build !js_eval

package objsync

// NewJSEvaluator returns nil unless the binary is built with the js_eval tag.
// Check JSEvaluatorAvailable before wiring it.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

// JSEvaluatorAvailable reports whether the goja engine is compiled in.
func JSEvaluatorAvailable() bool {
	return false
}
