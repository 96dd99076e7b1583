package inference

import (
	ort "github.com/yalue/onnxruntime_go"
)

// Session is an ONNX Runtime session with a fixed input tensor. Outputs are
// allocated by the runtime per run since YOLO exports differ in anchor count.
type Session struct {
	Session    *ort.DynamicAdvancedSession
	Input      *ort.Tensor[float32]
	InputName  string
	OutputName []string
}

// Run executes the model on the current contents of Input.
//
// Returns:
//   - One runtime-owned output value per output name; the caller destroys them.
//   - error: If the run fails.
func (s *Session) Run() ([]ort.Value, error) {
	outputs := make([]ort.Value, len(s.OutputName))
	if err := s.Session.Run([]ort.Value{s.Input}, outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Session != nil {
		s.Session.Destroy()
		s.Session = nil
	}
}
