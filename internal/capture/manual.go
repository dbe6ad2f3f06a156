package capture

import "context"

// InputField is the manual code entry field.
type InputField interface {
	CodeInput() string
}

// Manual submits whatever is typed in the input field. Keyboard-wedge USB
// scanners type into the same field.
type Manual struct {
	input InputField
}

func NewManual(input InputField) *Manual { return &Manual{input: input} }

func (m *Manual) Kind() Kind { return KindManual }

func (m *Manual) Probe() error { return nil }

func (m *Manual) Capture(ctx context.Context, submit SubmitFunc) error {
	return submit(ctx, m.input.CodeInput())
}

// Enter submits code as typed in one request, without going through the
// shared field another request may overwrite.
func (m *Manual) Enter(ctx context.Context, code string, submit SubmitFunc) error {
	return submit(ctx, code)
}

func (m *Manual) Stop() {}
