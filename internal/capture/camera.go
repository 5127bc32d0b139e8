// Package capture reads video frames from camera devices and video files using GoCV.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings.
const (
	DefaultFPS    = 10
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a source that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEndOfStream is returned once a finite source has no frames left.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera is a source of BGR frames.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller must Close it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// Source describes where frames come from, e.g. "camera:0".
	Source() string
}

// FrameCounter is implemented by sources whose length is known up front.
type FrameCounter interface {
	FrameCount() int
}

// videoSource reads from a camera device or, when path is set, a video file.
type videoSource struct {
	deviceID int
	path     string
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
}

// NewCamera creates a Camera for the given device ID.
func NewCamera(deviceID int) Camera {
	return &videoSource{deviceID: deviceID, fps: DefaultFPS}
}

// NewVideoFile creates a Camera that plays back a video file once.
// ReadFrame returns ErrEndOfStream after the last frame.
func NewVideoFile(path string) Camera {
	return &videoSource{path: path, fps: DefaultFPS}
}

func (c *videoSource) Source() string {
	if c.path != "" {
		return "file:" + c.path
	}
	return fmt.Sprintf("camera:%d", c.deviceID)
}

// Open starts capturing. Cameras are set to 640x480 for performance.
func (c *videoSource) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	if c.path != "" {
		capture, err := gocv.VideoCaptureFile(c.path)
		if err != nil {
			return fmt.Errorf("open %s: %w", c.path, err)
		}
		c.capture = capture
		c.running = true
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.deviceID, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	return nil
}

// Close stops capturing and releases the device or file.
func (c *videoSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false
	return err
}

func (c *videoSource) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if c.path != "" {
			return nil, ErrEndOfStream
		}
		return nil, errors.New("failed to read frame from camera")
	}

	return &mat, nil
}

// FrameCount returns the number of frames in a video file, or 0 for cameras
// and unopened sources.
func (c *videoSource) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" || c.capture == nil {
		return 0
	}
	return int(c.capture.Get(gocv.VideoCaptureFrameCount))
}

// SetFPS sets the capture rate. Values less than or equal to 0 are ignored.
func (c *videoSource) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil && c.path == "" {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *videoSource) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *videoSource) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
