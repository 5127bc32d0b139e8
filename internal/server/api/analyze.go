package api

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/calibration"
	"github.com/ayusman/nayana/internal/eye"
	"github.com/ayusman/nayana/internal/gaze"
	"github.com/ayusman/nayana/internal/landmark"
	"github.com/ayusman/nayana/internal/logger"
)

// MaxImageBytes caps the size of an uploaded image.
const MaxImageBytes = 10 << 20

var acceptedImageTypes = []string{"image/jpeg", "image/png"}

// AnalyzeHandler estimates gaze on a single uploaded image.
//
// Each request calibrates from scratch on the uploaded image alone, so the
// thresholds reflect that image's lighting only.
type AnalyzeHandler struct {
	detector landmark.Detector
	opts     calibration.Options
	mu       sync.Mutex
}

// NewAnalyzeHandler creates an AnalyzeHandler. opts.Frames is forced to 1.
func NewAnalyzeHandler(d landmark.Detector, opts calibration.Options) *AnalyzeHandler {
	opts.Frames = 1
	return &AnalyzeHandler{detector: d, opts: opts}
}

// AnalyzeResponse is the JSON body returned by AnalyzeHandler.
type AnalyzeResponse struct {
	Direction  gaze.Direction `json:"direction"`
	Horizontal float64        `json:"horizontal"`
	Vertical   float64        `json:"vertical"`
	Blinking   bool           `json:"blinking"`
	Pupils     bool           `json:"pupils_found"`
	Thresholds map[string]int `json:"thresholds"`
	Left       gaze.EyeResult `json:"left"`
	Right      gaze.EyeResult `json:"right"`
}

// ServeHTTP handles POST /api/analyze with a PNG or JPEG body.
func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImageBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Empty body")
		return
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), acceptedImageTypes...) {
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported image type "+mtype.String())
		return
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		if err == nil {
			img.Close()
		}
		writeError(w, http.StatusBadRequest, "Failed to decode image")
		return
	}
	defer img.Close()

	resp, err := h.analyze(&img)
	switch {
	case errors.Is(err, gaze.ErrNoFace):
		writeError(w, http.StatusUnprocessableEntity, "No face detected")
	case errors.Is(err, eye.ErrDegenerateCrop), errors.Is(err, eye.ErrTooFewLandmarks):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		logger.Error(logger.Fields{"error": err.Error()}, "image analysis failed")
		writeError(w, http.StatusInternalServerError, "Analysis failed")
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AnalyzeHandler) analyze(img *gocv.Mat) (*AnalyzeResponse, error) {
	cal, err := calibration.New(h.opts)
	if err != nil {
		return nil, err
	}

	// Detectors are not required to be safe for concurrent use.
	h.mu.Lock()
	result, err := gaze.NewTracker(h.detector, cal, nil).Refresh(img)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	resp := NewAnalyzeResponse(result)
	return &resp, nil
}

// NewAnalyzeResponse summarizes a gaze result.
func NewAnalyzeResponse(result *gaze.Result) AnalyzeResponse {
	return AnalyzeResponse{
		Direction:  result.Direction(),
		Horizontal: result.HorizontalRatio(),
		Vertical:   result.VerticalRatio(),
		Blinking:   result.IsBlinking(),
		Pupils:     result.Pupils(),
		Thresholds: map[string]int{
			eye.Left.String():  result.Left.Threshold,
			eye.Right.String(): result.Right.Threshold,
		},
		Left:  result.Left,
		Right: result.Right,
	}
}
