package core

import (
	"errors"
	"fmt"
)

// Setup errors. Fatal at startup, the run loop is never entered.
var (
	ErrNoSuitableDevice   = errors.New("no physical device supports graphics and presentation to the surface")
	ErrSurfaceUnsupported = errors.New("surface reports no valid swapchain configuration")
	ErrUnsupportedStage   = errors.New("unsupported shader stage")
)

// Transient frame errors, recovered by recreating the swapchain or suspending.
var (
	ErrSurfaceOutOfDate = errors.New("surface is out of date")
	ErrWindowMinimized  = errors.New("window has a zero sized framebuffer")
)

// Frame-fatal errors. The frame is dropped and the loop moves on.
var (
	ErrInvalidFramebufferIndex = errors.New("image index out of range for the render target set")
	ErrNoPendingAcquisition    = errors.New("no acquire future found")
	ErrAcquisitionPending      = errors.New("an acquired image has not been submitted yet")
	ErrStaleRenderTargets      = errors.New("render targets were built for an older swapchain")
)

var (
	ErrForeignDevice = errors.New("shader module belongs to a different device")
	ErrUnknown       = errors.New("unknown")
)

// ShaderCompileError carries the compiler diagnostic of a failed compilation.
type ShaderCompileError struct {
	Path       string
	Diagnostic string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("compile shader %s: %s", e.Path, e.Diagnostic)
}

// UnsupportedInterfaceFormatError is returned by reflection when an
// interface variable has a type outside the supported set.
type UnsupportedInterfaceFormatError struct {
	Name     string
	Location uint32
	Format   string
}

func (e *UnsupportedInterfaceFormatError) Error() string {
	return fmt.Sprintf("unsupported interface format %s for %q at location %d", e.Format, e.Name, e.Location)
}

type AcquireError struct {
	Err error
}

func (e *AcquireError) Error() string { return "acquire next image: " + e.Err.Error() }
func (e *AcquireError) Unwrap() error { return e.Err }

type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return "submit frame: " + e.Err.Error() }
func (e *SubmitError) Unwrap() error { return e.Err }

// IsSetup reports whether err belongs to the startup error class.
func IsSetup(err error) bool {
	var compileErr *ShaderCompileError
	var formatErr *UnsupportedInterfaceFormatError
	return errors.Is(err, ErrNoSuitableDevice) ||
		errors.Is(err, ErrSurfaceUnsupported) ||
		errors.Is(err, ErrUnsupportedStage) ||
		errors.As(err, &compileErr) ||
		errors.As(err, &formatErr)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrSurfaceOutOfDate) || errors.Is(err, ErrWindowMinimized)
}

func IsFrameFatal(err error) bool {
	var acquireErr *AcquireError
	var submitErr *SubmitError
	return errors.As(err, &acquireErr) ||
		errors.As(err, &submitErr) ||
		errors.Is(err, ErrInvalidFramebufferIndex) ||
		errors.Is(err, ErrNoPendingAcquisition) ||
		errors.Is(err, ErrAcquisitionPending) ||
		errors.Is(err, ErrStaleRenderTargets)
}
